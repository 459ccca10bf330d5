package commissions

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// two-decimal currency rounding
const currencyScale = 2

// ResolveRate applies the strict rate precedence: an explicit per-user custom
// rate beats the user's commission-role default, which beats the tenant
// default, which beats the system fallback.
func ResolveRate(user *models.User, role *models.CommissionRole, company *models.Company, fallback decimal.Decimal) decimal.Decimal {
	if user != nil && user.CustomCommissionRate != nil {
		return *user.CustomCommissionRate
	}
	if role != nil {
		return role.DefaultRate
	}
	if company != nil && company.DefaultCommissionRate != nil {
		return *company.DefaultCommissionRate
	}
	return fallback
}

// ComputeTotal returns amount x rate rounded to currency precision.
func ComputeTotal(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(currencyScale)
}

// InitialRelease decides how much of the total is payable immediately given
// the payment context, and the matching release status.
func InitialRelease(total decimal.Decimal, context enums.PaymentContext) (decimal.Decimal, enums.ReleaseStatus) {
	switch context {
	case enums.PaymentContextFull:
		return total, enums.ReleaseStatusReleased
	case enums.PaymentContextInstallment:
		// The commission on this installment is payable, but the sale is
		// expected to keep paying out.
		return total, enums.ReleaseStatusPartial
	case enums.PaymentContextDeferred:
		return decimal.Zero, enums.ReleaseStatusPending
	default:
		return total, enums.ReleaseStatusReleased
	}
}

// AdvanceRelease computes the new released amount and status after an
// additional release. Released never decreases and never exceeds total.
func AdvanceRelease(total, released, additional decimal.Decimal) (decimal.Decimal, enums.ReleaseStatus) {
	if additional.IsNegative() {
		additional = decimal.Zero
	}
	next := released.Add(additional)
	if next.GreaterThan(total) {
		next = total
	}
	switch {
	case next.GreaterThanOrEqual(total):
		return total, enums.ReleaseStatusReleased
	case next.IsPositive():
		return next, enums.ReleaseStatusPartial
	default:
		return next, enums.ReleaseStatusPending
	}
}
