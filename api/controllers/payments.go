package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/closetrack-backend/api/responses"
	"github.com/angelmondragon/closetrack-backend/api/validators"
	"github.com/angelmondragon/closetrack-backend/internal/payments"
	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
)

// PaymentMatcher covers the manual payment review operations.
type PaymentMatcher interface {
	ManualMatch(ctx context.Context, params payments.ManualMatchParams) (*models.Sale, error)
	ListUnmatched(ctx context.Context, companyID uuid.UUID, limit int) ([]models.UnmatchedPayment, error)
}

type manualMatchRequest struct {
	CompanyID          string `json:"companyId" validate:"required,uuid"`
	UnmatchedPaymentID string `json:"unmatchedPaymentId" validate:"required,uuid"`
	AppointmentID      string `json:"appointmentId" validate:"required,uuid"`
	ResolvedBy         string `json:"resolvedBy" validate:"required,uuid"`
}

type saleResponse struct {
	ID                uuid.UUID  `json:"id"`
	CompanyID         uuid.UUID  `json:"companyId"`
	Processor         string     `json:"processor"`
	ExternalPaymentID string     `json:"externalPaymentId"`
	Amount            string     `json:"amount"`
	PaidAt            time.Time  `json:"paidAt"`
	AppointmentID     *uuid.UUID `json:"appointmentId,omitempty"`
	MatchedBy         *string    `json:"matchedBy,omitempty"`
	MatchConfidence   *float64   `json:"matchConfidence,omitempty"`
}

type unmatchedPaymentResponse struct {
	ID           uuid.UUID       `json:"id"`
	SaleID       uuid.UUID       `json:"saleId"`
	Candidates   json.RawMessage `json:"candidates,omitempty"`
	ReviewStatus string          `json:"reviewStatus"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// ManualMatch resolves a queued payment to the appointment a reviewer picked.
func ManualMatch(service PaymentMatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req manualMatchRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		companyID := uuid.MustParse(req.CompanyID)
		ctx = logg.WithCompanyID(ctx, companyID.String())

		sale, err := service.ManualMatch(ctx, payments.ManualMatchParams{
			CompanyID:          companyID,
			UnmatchedPaymentID: uuid.MustParse(req.UnmatchedPaymentID),
			AppointmentID:      uuid.MustParse(req.AppointmentID),
			ResolvedBy:         uuid.MustParse(req.ResolvedBy),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSaleResponse(sale))
	}
}

// ListUnmatched returns the pending manual-review queue for a company.
func ListUnmatched(service PaymentMatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		companyID, err := uuid.Parse(r.URL.Query().Get("company"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "company query parameter must be a uuid"))
			return
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, parseErr := strconv.Atoi(raw)
			if parseErr != nil || parsed < 0 {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a non-negative integer"))
				return
			}
			limit = parsed
		}
		ctx = logg.WithCompanyID(ctx, companyID.String())

		rows, err := service.ListUnmatched(ctx, companyID, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		items := make([]unmatchedPaymentResponse, 0, len(rows))
		for _, row := range rows {
			items = append(items, unmatchedPaymentResponse{
				ID:           row.ID,
				SaleID:       row.SaleID,
				Candidates:   row.Candidates,
				ReviewStatus: string(row.ReviewStatus),
				CreatedAt:    row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, items)
	}
}

func newSaleResponse(sale *models.Sale) saleResponse {
	resp := saleResponse{
		ID:                sale.ID,
		CompanyID:         sale.CompanyID,
		Processor:         string(sale.Processor),
		ExternalPaymentID: sale.ExternalPaymentID,
		Amount:            sale.Amount.StringFixed(2),
		PaidAt:            sale.PaidAt,
		AppointmentID:     sale.AppointmentID,
		MatchConfidence:   sale.MatchConfidence,
	}
	if sale.MatchedBy != nil {
		matchedBy := string(*sale.MatchedBy)
		resp.MatchedBy = &matchedBy
	}
	return resp
}
