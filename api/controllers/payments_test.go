package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/internal/payments"
	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
)

type fakePaymentsService struct {
	matchParams *payments.ManualMatchParams
	matchResult *models.Sale
	matchErr    error

	listCompany uuid.UUID
	listLimit   int
	listResult  []models.UnmatchedPayment
	listErr     error
}

func (f *fakePaymentsService) ManualMatch(_ context.Context, params payments.ManualMatchParams) (*models.Sale, error) {
	f.matchParams = &params
	return f.matchResult, f.matchErr
}

func (f *fakePaymentsService) ListUnmatched(_ context.Context, companyID uuid.UUID, limit int) ([]models.UnmatchedPayment, error) {
	f.listCompany = companyID
	f.listLimit = limit
	return f.listResult, f.listErr
}

func TestManualMatchResolvesPayment(t *testing.T) {
	companyID := uuid.New()
	paymentID := uuid.New()
	appointmentID := uuid.New()
	resolvedBy := uuid.New()
	matchedBy := enums.MatchedByManual

	svc := &fakePaymentsService{
		matchResult: &models.Sale{
			ID:                uuid.New(),
			CompanyID:         companyID,
			Processor:         enums.ProcessorStripe,
			ExternalPaymentID: "pi_123",
			Amount:            decimal.NewFromInt(2500),
			PaidAt:            time.Now().UTC(),
			AppointmentID:     &appointmentID,
			MatchedBy:         &matchedBy,
		},
	}

	rec := postJSON(t, ManualMatch(svc, testLogger()), "/api/v1/payments/manual-match", map[string]any{
		"companyId":          companyID.String(),
		"unmatchedPaymentId": paymentID.String(),
		"appointmentId":      appointmentID.String(),
		"resolvedBy":         resolvedBy.String(),
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.matchParams == nil {
		t.Fatal("service was not called")
	}
	if svc.matchParams.UnmatchedPaymentID != paymentID {
		t.Fatalf("unmatched payment id = %s", svc.matchParams.UnmatchedPaymentID)
	}
	if svc.matchParams.ResolvedBy != resolvedBy {
		t.Fatalf("resolved by = %s", svc.matchParams.ResolvedBy)
	}

	var envelope struct {
		Data struct {
			Amount        string     `json:"amount"`
			AppointmentID *uuid.UUID `json:"appointmentId"`
			MatchedBy     *string    `json:"matchedBy"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Amount != "2500.00" {
		t.Fatalf("amount = %q", envelope.Data.Amount)
	}
	if envelope.Data.AppointmentID == nil || *envelope.Data.AppointmentID != appointmentID {
		t.Fatalf("appointment id = %v", envelope.Data.AppointmentID)
	}
	if envelope.Data.MatchedBy == nil || *envelope.Data.MatchedBy != string(enums.MatchedByManual) {
		t.Fatalf("matched by = %v", envelope.Data.MatchedBy)
	}
}

func TestManualMatchRequiresAllIDs(t *testing.T) {
	svc := &fakePaymentsService{}
	rec := postJSON(t, ManualMatch(svc, testLogger()), "/api/v1/payments/manual-match", map[string]any{
		"companyId": uuid.New().String(),
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if svc.matchParams != nil {
		t.Fatal("service must not be called with a partial request")
	}
}

func TestManualMatchSurfacesNotFound(t *testing.T) {
	svc := &fakePaymentsService{
		matchErr: pkgerrors.New(pkgerrors.CodeNotFound, "unmatched payment not found"),
	}
	rec := postJSON(t, ManualMatch(svc, testLogger()), "/api/v1/payments/manual-match", map[string]any{
		"companyId":          uuid.New().String(),
		"unmatchedPaymentId": uuid.New().String(),
		"appointmentId":      uuid.New().String(),
		"resolvedBy":         uuid.New().String(),
	})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListUnmatchedReturnsQueue(t *testing.T) {
	companyID := uuid.New()
	svc := &fakePaymentsService{
		listResult: []models.UnmatchedPayment{
			{
				ID:           uuid.New(),
				CompanyID:    companyID,
				SaleID:       uuid.New(),
				Candidates:   json.RawMessage(`[{"appointmentId":"x","score":0.4}]`),
				ReviewStatus: enums.ReviewStatusPending,
			},
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/unmatched?company="+companyID.String()+"&limit=10", nil)
	rec := httptest.NewRecorder()
	ListUnmatched(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.listCompany != companyID {
		t.Fatalf("company = %s", svc.listCompany)
	}
	if svc.listLimit != 10 {
		t.Fatalf("limit = %d", svc.listLimit)
	}

	var envelope struct {
		Data []unmatchedPaymentResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("items = %d", len(envelope.Data))
	}
	if envelope.Data[0].ReviewStatus != string(enums.ReviewStatusPending) {
		t.Fatalf("review status = %q", envelope.Data[0].ReviewStatus)
	}
}

func TestListUnmatchedRejectsBadCompany(t *testing.T) {
	svc := &fakePaymentsService{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/unmatched?company=nope", nil)
	rec := httptest.NewRecorder()
	ListUnmatched(svc, testLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
