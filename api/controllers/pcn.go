package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/closetrack-backend/api/responses"
	"github.com/angelmondragon/closetrack-backend/api/validators"
	"github.com/angelmondragon/closetrack-backend/internal/fields"
	"github.com/angelmondragon/closetrack-backend/internal/pcn"
	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
)

// PCNSubmitter covers the manual PCN operations.
type PCNSubmitter interface {
	Submit(ctx context.Context, params pcn.SubmitParams) (*models.Appointment, error)
	Review(ctx context.Context, params pcn.ReviewParams) (*models.PCNDraft, error)
}

type pcnSubmitRequest struct {
	CompanyID     string `json:"companyId" validate:"required,uuid"`
	AppointmentID string `json:"appointmentId" validate:"required,uuid"`
	CallOutcome   string `json:"callOutcome" validate:"required"`

	Notes                  string `json:"notes"`
	WhyDidntMoveForward    string `json:"whyDidntMoveForward"`
	NurtureType            string `json:"nurtureType"`
	FollowUpScheduled      any    `json:"followUpScheduled"`
	FollowUpDate           string `json:"followUpDate"`
	CashCollected          any    `json:"cashCollected"`
	WasOfferMade           any    `json:"wasOfferMade"`
	NoShowCommunicative    any    `json:"noShowCommunicative"`
	CancellationReason     string `json:"cancellationReason"`
	DisqualificationReason string `json:"disqualificationReason"`
	QualificationStatus    string `json:"qualificationStatus"`

	SubmittedBy string `json:"submittedBy"`
	Correction  bool   `json:"correction"`
}

type pcnReviewRequest struct {
	CompanyID     string `json:"companyId" validate:"required,uuid"`
	AppointmentID string `json:"appointmentId" validate:"required,uuid"`
	Decision      string `json:"decision" validate:"required,oneof=approve reject"`
	Reviewer      string `json:"reviewer"`
	Reason        string `json:"reason"`
}

type appointmentResponse struct {
	ID                  uuid.UUID  `json:"id"`
	CompanyID           uuid.UUID  `json:"companyId"`
	ExternalID          string     `json:"externalId"`
	Status              string     `json:"status"`
	ScheduledAt         time.Time  `json:"scheduledAt"`
	CallOutcome         *string    `json:"callOutcome,omitempty"`
	Notes               string     `json:"notes,omitempty"`
	CashCollected       *string    `json:"cashCollected,omitempty"`
	QualificationStatus string     `json:"qualificationStatus,omitempty"`
	PCNSubmitted        bool       `json:"pcnSubmitted"`
	PCNSubmittedAt      *time.Time `json:"pcnSubmittedAt,omitempty"`
}

type draftResponse struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointmentId"`
	Source        string     `json:"source"`
	Status        string     `json:"status"`
	Reviewer      string     `json:"reviewer,omitempty"`
	ReviewReason  string     `json:"reviewReason,omitempty"`
	ReviewedAt    *time.Time `json:"reviewedAt,omitempty"`
}

// PCNSubmit finalizes an appointment's post-call note from the dashboard.
func PCNSubmit(service PCNSubmitter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req pcnSubmitRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		companyID := uuid.MustParse(req.CompanyID)
		appointmentID := uuid.MustParse(req.AppointmentID)
		ctx = logg.WithCompanyID(ctx, companyID.String())

		values, err := pcnValuesFromRequest(&req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		appointment, err := service.Submit(ctx, pcn.SubmitParams{
			CompanyID:        companyID,
			AppointmentID:    appointmentID,
			Source:           enums.PCNSourceHuman,
			Actor:            req.SubmittedBy,
			Values:           *values,
			StrictValidation: true,
			Correction:       req.Correction,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newAppointmentResponse(appointment))
	}
}

// PCNReview approves or rejects a pending automated draft.
func PCNReview(service PCNSubmitter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req pcnReviewRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		companyID := uuid.MustParse(req.CompanyID)
		ctx = logg.WithCompanyID(ctx, companyID.String())

		draft, err := service.Review(ctx, pcn.ReviewParams{
			CompanyID:     companyID,
			AppointmentID: uuid.MustParse(req.AppointmentID),
			Decision:      req.Decision,
			Reviewer:      req.Reviewer,
			Reason:        req.Reason,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, draftResponse{
			ID:            draft.ID,
			AppointmentID: draft.AppointmentID,
			Source:        string(draft.Source),
			Status:        string(draft.Status),
			Reviewer:      draft.Reviewer,
			ReviewReason:  draft.ReviewReason,
			ReviewedAt:    draft.ReviewedAt,
		})
	}
}

func pcnValuesFromRequest(req *pcnSubmitRequest) (*fields.PCNValues, error) {
	outcome, err := fields.CoerceOutcome(req.CallOutcome)
	if err != nil {
		return nil, err
	}

	values := &fields.PCNValues{
		Outcome:                outcome,
		Notes:                  req.Notes,
		Objection:              req.WhyDidntMoveForward,
		NurtureType:            req.NurtureType,
		CancellationReason:     req.CancellationReason,
		DisqualificationReason: req.DisqualificationReason,
		QualificationStatus:    req.QualificationStatus,
	}
	if req.FollowUpScheduled != nil {
		values.FollowUpScheduled = fields.CoerceBool(req.FollowUpScheduled)
	}
	if req.WasOfferMade != nil {
		values.OfferMade = fields.CoerceBool(req.WasOfferMade)
	}
	if req.NoShowCommunicative != nil {
		values.NoShowCommunicative = fields.CoerceBool(req.NoShowCommunicative)
	}
	if req.FollowUpDate != "" {
		parsed, ok := fields.CoerceTime(req.FollowUpDate)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "followUpDate is not a recognizable date")
		}
		values.FollowUpDate = &parsed
	}
	if req.CashCollected != nil {
		amount, ok := fields.CoerceCurrency(req.CashCollected)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cashCollected is not a recognizable amount")
		}
		values.CashCollected = &amount
	}
	return values, nil
}

func newAppointmentResponse(appointment *models.Appointment) appointmentResponse {
	resp := appointmentResponse{
		ID:                  appointment.ID,
		CompanyID:           appointment.CompanyID,
		ExternalID:          appointment.ExternalID,
		Status:              string(appointment.Status),
		ScheduledAt:         appointment.ScheduledAt,
		Notes:               appointment.PCNNotes,
		QualificationStatus: appointment.PCNQualificationStatus,
		PCNSubmitted:        appointment.PCNSubmitted,
		PCNSubmittedAt:      appointment.PCNSubmittedAt,
	}
	if appointment.PCNOutcome != nil {
		outcome := string(*appointment.PCNOutcome)
		resp.CallOutcome = &outcome
	}
	if appointment.CashCollected != nil {
		amount := appointment.CashCollected.StringFixed(2)
		resp.CashCollected = &amount
	}
	return resp
}
