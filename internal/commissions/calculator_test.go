package commissions

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestResolveRatePrecedence(t *testing.T) {
	custom := dec("0.25")
	companyDefault := dec("0.15")
	fallback := dec("0.10")

	role := &models.CommissionRole{DefaultRate: dec("0.20")}
	company := &models.Company{DefaultCommissionRate: &companyDefault}

	cases := []struct {
		name    string
		user    *models.User
		role    *models.CommissionRole
		company *models.Company
		want    string
	}{
		{"custom rate wins over everything", &models.User{CustomCommissionRate: &custom}, role, company, "0.25"},
		{"role default beats company default", &models.User{}, role, company, "0.2"},
		{"company default beats fallback", &models.User{}, nil, company, "0.15"},
		{"fallback when nothing configured", &models.User{}, nil, &models.Company{}, "0.1"},
	}
	for _, tc := range cases {
		got := ResolveRate(tc.user, tc.role, tc.company, fallback)
		if !got.Equal(dec(tc.want)) {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestComputeTotalRoundsToCents(t *testing.T) {
	cases := []struct {
		amount, rate, want string
	}{
		{"1500", "0.10", "150"},
		{"999.99", "0.125", "125"},
		{"333.33", "0.1", "33.33"},
		{"0", "0.5", "0"},
	}
	for _, tc := range cases {
		got := ComputeTotal(dec(tc.amount), dec(tc.rate))
		if !got.Equal(dec(tc.want)) {
			t.Errorf("ComputeTotal(%s, %s) = %s, want %s", tc.amount, tc.rate, got, tc.want)
		}
	}
}

func TestInitialReleaseByPaymentContext(t *testing.T) {
	total := dec("150")

	cases := []struct {
		context    enums.PaymentContext
		wantAmount string
		wantStatus enums.ReleaseStatus
	}{
		{enums.PaymentContextFull, "150", enums.ReleaseStatusReleased},
		{enums.PaymentContextInstallment, "150", enums.ReleaseStatusPartial},
		{enums.PaymentContextDeferred, "0", enums.ReleaseStatusPending},
	}
	for _, tc := range cases {
		amount, status := InitialRelease(total, tc.context)
		if !amount.Equal(dec(tc.wantAmount)) || status != tc.wantStatus {
			t.Errorf("InitialRelease(%s) = (%s, %s), want (%s, %s)",
				tc.context, amount, status, tc.wantAmount, tc.wantStatus)
		}
	}
}

func TestAdvanceReleaseNeverExceedsTotal(t *testing.T) {
	total := dec("150")

	released, status := AdvanceRelease(total, dec("100"), dec("75"))
	if !released.Equal(total) {
		t.Fatalf("released = %s, want clamped to %s", released, total)
	}
	if status != enums.ReleaseStatusReleased {
		t.Fatalf("status = %s, want released", status)
	}
}

func TestAdvanceReleaseNegativeAdditionalIsNoOp(t *testing.T) {
	total := dec("150")

	released, status := AdvanceRelease(total, dec("50"), dec("-25"))
	if !released.Equal(dec("50")) {
		t.Fatalf("released = %s, want unchanged 50", released)
	}
	if status != enums.ReleaseStatusPartial {
		t.Fatalf("status = %s, want partial", status)
	}
}

func TestAdvanceReleaseFromZero(t *testing.T) {
	total := dec("150")

	released, status := AdvanceRelease(total, decimal.Zero, decimal.Zero)
	if !released.IsZero() || status != enums.ReleaseStatusPending {
		t.Fatalf("got (%s, %s), want (0, pending)", released, status)
	}

	released, status = AdvanceRelease(total, decimal.Zero, dec("75"))
	if !released.Equal(dec("75")) || status != enums.ReleaseStatusPartial {
		t.Fatalf("got (%s, %s), want (75, partial)", released, status)
	}
}

// Released amount stays within [0, total] across an arbitrary sequence of
// release steps, and the total always equals amount times rate at cent
// precision.
func TestCommissionArithmeticInvariants(t *testing.T) {
	amounts := []string{"0", "49.99", "1500", "12345.67"}
	rates := []string{"0", "0.05", "0.10", "0.3333", "1"}

	for _, a := range amounts {
		for _, r := range rates {
			amount, rate := dec(a), dec(r)
			total := ComputeTotal(amount, rate)
			if !total.Equal(amount.Mul(rate).Round(2)) {
				t.Fatalf("total %s deviates from %s x %s", total, a, r)
			}

			released := decimal.Zero
			for _, step := range []string{"10", "-5", "0.01", "99999"} {
				var status enums.ReleaseStatus
				released, status = AdvanceRelease(total, released, dec(step))
				if released.IsNegative() || released.GreaterThan(total) {
					t.Fatalf("released %s escaped [0, %s]", released, total)
				}
				if status == enums.ReleaseStatusReleased && !released.Equal(total) {
					t.Fatalf("status released but amount %s != total %s", released, total)
				}
			}
		}
	}
}
