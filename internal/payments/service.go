package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/closetrack-backend/internal/appointments"
	"github.com/angelmondragon/closetrack-backend/pkg/config"
	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox/payloads"
)

type candidateSource interface {
	FindMatchCandidates(ctx context.Context, companyID uuid.UUID, signals appointments.MatchSignals, lookback time.Duration, limit int) ([]appointments.CandidateRow, error)
	FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*models.Appointment, error)
}

type companyLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Company, error)
}

type commissionCreator interface {
	CreateForSale(ctx context.Context, tx *gorm.DB, sale *models.Sale, closerID uuid.UUID) (*models.Commission, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the matcher's collaborators.
type ServiceParams struct {
	Sales             *Repository
	Unmatched         *UnmatchedRepository
	Appointments      candidateSource
	Companies         companyLoader
	Commissions       commissionCreator
	Events            outboxEmitter
	TransactionRunner txRunner
	Matching          config.MatchingConfig
	Logger            *logger.Logger
}

// Service ingests processor payments, links them to appointments and queues
// the ones it cannot place for manual review.
type Service struct {
	sales       *Repository
	unmatched   *UnmatchedRepository
	appts       candidateSource
	companies   companyLoader
	commissions commissionCreator
	events      outboxEmitter
	txRunner    txRunner
	matching    config.MatchingConfig
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Sales == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sales repo required")
	}
	if params.Unmatched == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unmatched repo required")
	}
	if params.Appointments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "appointments source required")
	}
	if params.Companies == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "company loader required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		sales:       params.Sales,
		unmatched:   params.Unmatched,
		appts:       params.Appointments,
		companies:   params.Companies,
		commissions: params.Commissions,
		events:      params.Events,
		txRunner:    params.TransactionRunner,
		matching:    params.Matching,
		logg:        params.Logger,
	}, nil
}

// IngestParams is a normalized payment notification.
type IngestParams struct {
	CompanyID         uuid.UUID
	Processor         enums.Processor
	ExternalPaymentID string
	Amount            decimal.Decimal
	PaidAt            time.Time
	ContactEmail      string
	ContactPhone      string
	ContactName       string
	CloserEmail       string
	PaymentContext    enums.PaymentContext
}

// Ingest records the payment and runs the matcher. A replayed external
// payment id returns the stored sale untouched; the first delivery wins.
func (s *Service) Ingest(ctx context.Context, params IngestParams) (*models.Sale, error) {
	if strings.TrimSpace(params.ExternalPaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external payment id required")
	}
	if params.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount cannot be negative")
	}
	paymentContext := params.PaymentContext
	if paymentContext == "" {
		paymentContext = enums.PaymentContextFull
	}
	paidAt := params.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	var stored *models.Sale
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		sale := &models.Sale{
			CompanyID:         params.CompanyID,
			Processor:         params.Processor,
			ExternalPaymentID: params.ExternalPaymentID,
			Amount:            params.Amount,
			PaidAt:            paidAt,
			ContactEmail:      strings.ToLower(strings.TrimSpace(params.ContactEmail)),
			ContactPhone:      strings.TrimSpace(params.ContactPhone),
			ContactName:       strings.TrimSpace(params.ContactName),
			CloserEmail:       strings.ToLower(strings.TrimSpace(params.CloserEmail)),
			PaymentContext:    paymentContext,
		}
		row, created, err := s.sales.WithTx(tx).CreateIfAbsent(ctx, sale)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store sale")
		}
		stored = row
		if !created {
			if s.logg != nil {
				logCtx := s.logg.WithField(ctx, "external_payment_id", params.ExternalPaymentID)
				s.logg.Info(logCtx, "payment already ingested, skipping")
			}
			return nil
		}
		return s.match(ctx, tx, stored)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// match scores candidates for an unassigned sale inside the ingest
// transaction and either links the winner or queues the sale for review.
func (s *Service) match(ctx context.Context, tx *gorm.DB, sale *models.Sale) error {
	company, err := s.companies.Get(ctx, sale.CompanyID)
	if err != nil {
		return err
	}
	threshold := s.matching.DefaultAcceptThreshold
	if company.MatchAcceptThreshold != nil {
		threshold = *company.MatchAcceptThreshold
	}

	signals := appointments.MatchSignals{
		Email:       sale.ContactEmail,
		Phone:       sale.ContactPhone,
		Name:        sale.ContactName,
		CloserEmail: sale.CloserEmail,
	}
	lookback := time.Duration(s.matching.LookbackDays) * 24 * time.Hour
	rows, err := s.appts.FindMatchCandidates(ctx, sale.CompanyID, signals, lookback, s.matching.MaxCandidates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "search match candidates")
	}

	outcome := Evaluate(rows, threshold, s.matching.MaxCandidates)
	if outcome.Accepted {
		return s.assign(ctx, tx, sale, outcome.Best.AppointmentID, enums.MatchedByAuto, outcome.Best.Score, nil)
	}
	return s.queueForReview(ctx, tx, sale, outcome)
}

// assign links the sale to the appointment, emits the matched event and
// creates the closer's commission when the appointment has one.
func (s *Service) assign(ctx context.Context, tx *gorm.DB, sale *models.Sale, appointmentID uuid.UUID, matchedBy enums.MatchedBy, confidence float64, resolvedBy *uuid.UUID) error {
	if err := s.sales.WithTx(tx).AssignMatch(ctx, sale.ID, appointmentID, matchedBy, confidence, resolvedBy); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assign sale match")
	}
	sale.AppointmentID = &appointmentID
	sale.MatchedBy = &matchedBy
	sale.MatchConfidence = &confidence

	if s.events != nil {
		err := s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleMatched,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Version:       1,
			Data: payloads.SaleMatchedEvent{
				SaleID:        sale.ID,
				AppointmentID: appointmentID,
				CompanyID:     sale.CompanyID,
				Amount:        sale.Amount,
				MatchedBy:     matchedBy,
				Confidence:    &confidence,
			},
		})
		if err != nil {
			return err
		}
	}

	appointment, err := s.appts.FindByIDForCompany(ctx, sale.CompanyID, appointmentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load matched appointment")
	}
	if appointment.CloserID == nil {
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "appointment_id", appointmentID.String())
			s.logg.Warn(logCtx, "matched appointment has no closer, skipping commission")
		}
		return nil
	}
	if s.commissions == nil {
		return nil
	}
	if _, err := s.commissions.CreateForSale(ctx, tx, sale, *appointment.CloserID); err != nil {
		return err
	}
	return nil
}

// queueForReview stores the sale on the review queue with the candidate list
// the matcher considered.
func (s *Service) queueForReview(ctx context.Context, tx *gorm.DB, sale *models.Sale, outcome MatchOutcome) error {
	candidates, err := json.Marshal(outcome.Candidates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode match candidates")
	}
	_, created, err := s.unmatched.WithTx(tx).CreateIfAbsent(ctx, &models.UnmatchedPayment{
		CompanyID:  sale.CompanyID,
		SaleID:     sale.ID,
		Candidates: candidates,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue unmatched payment")
	}
	if !created {
		return nil
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"sale_id":    sale.ID.String(),
			"candidates": len(outcome.Candidates),
		})
		s.logg.Info(logCtx, "payment queued for manual review")
	}

	if s.events == nil {
		return nil
	}
	reason := "no candidate cleared the accept threshold"
	if len(outcome.Candidates) == 0 {
		reason = "no candidates found"
	}
	return s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSaleUnmatched,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		Version:       1,
		Data: payloads.SaleUnmatchedEvent{
			SaleID:    sale.ID,
			CompanyID: sale.CompanyID,
			Amount:    sale.Amount,
			Reason:    reason,
		},
	})
}

// ManualMatchParams identifies the review item, the chosen appointment and
// the resolving user.
type ManualMatchParams struct {
	CompanyID          uuid.UUID
	UnmatchedPaymentID uuid.UUID
	AppointmentID      uuid.UUID
	ResolvedBy         uuid.UUID
}

// ManualMatch resolves a review item against a reviewer-chosen appointment.
// Manual matches carry confidence 1.0 and record who resolved them.
func (s *Service) ManualMatch(ctx context.Context, params ManualMatchParams) (*models.Sale, error) {
	var stored *models.Sale
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := s.unmatched.WithTx(tx).FindByIDForCompany(ctx, params.CompanyID, params.UnmatchedPaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "unmatched payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load unmatched payment")
		}
		if item.ReviewStatus != enums.ReviewStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already resolved")
		}
		if _, err := s.appts.FindByIDForCompany(ctx, params.CompanyID, params.AppointmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load appointment")
		}
		sale, err := s.sales.WithTx(tx).FindByIDForCompany(ctx, params.CompanyID, item.SaleID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale")
		}

		resolvedBy := params.ResolvedBy
		if err := s.assign(ctx, tx, sale, params.AppointmentID, enums.MatchedByManual, 1.0, &resolvedBy); err != nil {
			return err
		}
		resolved, err := s.unmatched.WithTx(tx).Resolve(ctx, item.ID, &resolvedBy)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve review item")
		}
		if !resolved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already resolved")
		}
		stored = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListUnmatched returns a tenant's open review queue.
func (s *Service) ListUnmatched(ctx context.Context, companyID uuid.UUID, limit int) ([]models.UnmatchedPayment, error) {
	if limit <= 0 {
		limit = s.matching.MaxCandidates
	}
	rows, err := s.unmatched.ListPending(ctx, companyID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list unmatched payments")
	}
	return rows, nil
}

// RematchPending re-runs the matcher over the open review queue. New
// appointments arrive continuously, so yesterday's orphan may match today.
// Returns how many payments were matched; per-item failures are aggregated
// and do not stop the pass.
func (s *Service) RematchPending(ctx context.Context, batch int) (int, error) {
	items, err := s.unmatched.ListPendingBatch(ctx, batch)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pending review items")
	}
	var matched int
	var errs error
	for _, item := range items {
		ok, err := s.rematchOne(ctx, item)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			matched++
		}
	}
	return matched, errs
}

func (s *Service) rematchOne(ctx context.Context, item models.UnmatchedPayment) (bool, error) {
	var matched bool
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		sale, err := s.sales.WithTx(tx).FindByIDForCompany(ctx, item.CompanyID, item.SaleID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale for rematch")
		}
		if sale.AppointmentID != nil {
			// Already linked out of band; just close the review item.
			_, err := s.unmatched.WithTx(tx).Resolve(ctx, item.ID, nil)
			return err
		}

		company, err := s.companies.Get(ctx, sale.CompanyID)
		if err != nil {
			return err
		}
		threshold := s.matching.DefaultAcceptThreshold
		if company.MatchAcceptThreshold != nil {
			threshold = *company.MatchAcceptThreshold
		}
		signals := appointments.MatchSignals{
			Email:       sale.ContactEmail,
			Phone:       sale.ContactPhone,
			Name:        sale.ContactName,
			CloserEmail: sale.CloserEmail,
		}
		lookback := time.Duration(s.matching.LookbackDays) * 24 * time.Hour
		rows, err := s.appts.FindMatchCandidates(ctx, sale.CompanyID, signals, lookback, s.matching.MaxCandidates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "search rematch candidates")
		}
		outcome := Evaluate(rows, threshold, s.matching.MaxCandidates)
		if !outcome.Accepted {
			return nil
		}
		if err := s.assign(ctx, tx, sale, outcome.Best.AppointmentID, enums.MatchedByAuto, outcome.Best.Score, nil); err != nil {
			return err
		}
		if _, err := s.unmatched.WithTx(tx).Resolve(ctx, item.ID, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve review item")
		}
		matched = true
		return nil
	})
	return matched, err
}
