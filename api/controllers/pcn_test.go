package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/internal/pcn"
	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
}

type fakePCNService struct {
	submitParams *pcn.SubmitParams
	submitResult *models.Appointment
	submitErr    error

	reviewParams *pcn.ReviewParams
	reviewResult *models.PCNDraft
	reviewErr    error
}

func (f *fakePCNService) Submit(_ context.Context, params pcn.SubmitParams) (*models.Appointment, error) {
	f.submitParams = &params
	return f.submitResult, f.submitErr
}

func (f *fakePCNService) Review(_ context.Context, params pcn.ReviewParams) (*models.PCNDraft, error) {
	f.reviewParams = &params
	return f.reviewResult, f.reviewErr
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestPCNSubmitCoercesLooseFields(t *testing.T) {
	companyID := uuid.New()
	appointmentID := uuid.New()
	submittedAt := time.Now().UTC()
	outcome := enums.CallOutcomeSigned
	cash := decimal.NewFromInt(1500)

	svc := &fakePCNService{
		submitResult: &models.Appointment{
			ID:             appointmentID,
			CompanyID:      companyID,
			ExternalID:     "apt_1",
			Status:         enums.AppointmentStatusSigned,
			PCNOutcome:     &outcome,
			CashCollected:  &cash,
			PCNSubmitted:   true,
			PCNSubmittedAt: &submittedAt,
		},
	}

	rec := postJSON(t, PCNSubmit(svc, testLogger()), "/api/v1/pcn/submit", map[string]any{
		"companyId":         companyID.String(),
		"appointmentId":     appointmentID.String(),
		"callOutcome":       "Closed Won",
		"cashCollected":     "$1,500",
		"wasOfferMade":      "yes",
		"followUpScheduled": true,
		"notes":             "signed on the call",
		"submittedBy":       "closer@acme.test",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.submitParams == nil {
		t.Fatal("service was not called")
	}
	params := svc.submitParams
	if params.Source != enums.PCNSourceHuman {
		t.Fatalf("source = %q, want human", params.Source)
	}
	if !params.StrictValidation {
		t.Fatal("manual submissions must be strict")
	}
	if params.Values.Outcome != enums.CallOutcomeSigned {
		t.Fatalf("outcome = %q, want signed", params.Values.Outcome)
	}
	if params.Values.CashCollected == nil || !params.Values.CashCollected.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("cash collected = %v, want 1500", params.Values.CashCollected)
	}
	if params.Actor != "closer@acme.test" {
		t.Fatalf("actor = %q", params.Actor)
	}

	var envelope struct {
		Data struct {
			ID            uuid.UUID `json:"id"`
			CallOutcome   *string   `json:"callOutcome"`
			CashCollected *string   `json:"cashCollected"`
			PCNSubmitted  bool      `json:"pcnSubmitted"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != appointmentID {
		t.Fatalf("response id = %s", envelope.Data.ID)
	}
	if envelope.Data.CallOutcome == nil || *envelope.Data.CallOutcome != "signed" {
		t.Fatalf("response outcome = %v", envelope.Data.CallOutcome)
	}
	if envelope.Data.CashCollected == nil || *envelope.Data.CashCollected != "1500.00" {
		t.Fatalf("response cash = %v", envelope.Data.CashCollected)
	}
	if !envelope.Data.PCNSubmitted {
		t.Fatal("response should report pcnSubmitted")
	}
}

func TestPCNSubmitRejectsUnknownOutcome(t *testing.T) {
	svc := &fakePCNService{}
	rec := postJSON(t, PCNSubmit(svc, testLogger()), "/api/v1/pcn/submit", map[string]any{
		"companyId":     uuid.New().String(),
		"appointmentId": uuid.New().String(),
		"callOutcome":   "teleported",
	})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if svc.submitParams != nil {
		t.Fatal("service must not be called for an unrecognized outcome")
	}
}

func TestPCNSubmitValidatesBody(t *testing.T) {
	svc := &fakePCNService{}
	rec := postJSON(t, PCNSubmit(svc, testLogger()), "/api/v1/pcn/submit", map[string]any{
		"companyId": "not-a-uuid",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("error code = %q", envelope.Error.Code)
	}
}

func TestPCNSubmitSurfacesAlreadyProcessed(t *testing.T) {
	svc := &fakePCNService{
		submitErr: pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "post-call note already submitted"),
	}
	rec := postJSON(t, PCNSubmit(svc, testLogger()), "/api/v1/pcn/submit", map[string]any{
		"companyId":     uuid.New().String(),
		"appointmentId": uuid.New().String(),
		"callOutcome":   "no show",
	})

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestPCNReviewPassesDecision(t *testing.T) {
	companyID := uuid.New()
	appointmentID := uuid.New()
	reviewedAt := time.Now().UTC()
	svc := &fakePCNService{
		reviewResult: &models.PCNDraft{
			ID:            uuid.New(),
			CompanyID:     companyID,
			AppointmentID: appointmentID,
			Source:        enums.PCNSourceAI,
			Status:        enums.DraftStatusApproved,
			Reviewer:      "manager@acme.test",
			ReviewedAt:    &reviewedAt,
		},
	}

	rec := postJSON(t, PCNReview(svc, testLogger()), "/api/v1/pcn/review", map[string]any{
		"companyId":     companyID.String(),
		"appointmentId": appointmentID.String(),
		"decision":      "approve",
		"reviewer":      "manager@acme.test",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.reviewParams == nil {
		t.Fatal("service was not called")
	}
	if svc.reviewParams.Decision != "approve" {
		t.Fatalf("decision = %q", svc.reviewParams.Decision)
	}
	if svc.reviewParams.CompanyID != companyID {
		t.Fatalf("company = %s", svc.reviewParams.CompanyID)
	}
}

func TestPCNReviewRejectsUnknownDecision(t *testing.T) {
	svc := &fakePCNService{}
	rec := postJSON(t, PCNReview(svc, testLogger()), "/api/v1/pcn/review", map[string]any{
		"companyId":     uuid.New().String(),
		"appointmentId": uuid.New().String(),
		"decision":      "maybe",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if svc.reviewParams != nil {
		t.Fatal("service must not be called for an invalid decision")
	}
}
