package appointments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// UpsertParams carries everything a calendar webhook tells us about a booking.
type UpsertParams struct {
	CompanyID   uuid.UUID
	ExternalID  string
	ScheduledAt time.Time
	Status      enums.AppointmentStatus
	ContactID   *uuid.UUID
	CalendarID  *uuid.UUID
	CloserID    *uuid.UUID
	SetterID    *uuid.UUID
}

// Service owns the appointment lifecycle outside of PCN submission.
type Service struct {
	repo     *Repository
	txRunner txRunner
	events   outboxEmitter
	logg     *logger.Logger
}

func NewService(repo *Repository, txRunner txRunner, events outboxEmitter, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "appointment repo required")
	}
	if txRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{repo: repo, txRunner: txRunner, events: events, logg: logg}, nil
}

// Upsert applies a webhook delivery as an idempotent upsert against the
// external appointment id. Replays and out-of-order deliveries converge: the
// row is keyed on the external id, and terminal statuses never regress.
func (s *Service) Upsert(ctx context.Context, params UpsertParams) (*models.Appointment, error) {
	if params.ExternalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external appointment id required")
	}
	if params.ScheduledAt.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled time required")
	}

	var stored *models.Appointment
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		row := &models.Appointment{
			CompanyID:   params.CompanyID,
			ExternalID:  params.ExternalID,
			ScheduledAt: params.ScheduledAt,
			ContactID:   params.ContactID,
			CalendarID:  params.CalendarID,
			CloserID:    params.CloserID,
			SetterID:    params.SetterID,
		}
		upserted, err := repo.Upsert(ctx, row)
		if err != nil {
			return err
		}

		if params.Status.IsValid() && params.Status != upserted.Status {
			if err := s.transition(ctx, tx, repo, upserted, params.Status); err != nil {
				return err
			}
		}

		stored, err = repo.FindByID(ctx, upserted.ID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert appointment")
	}
	return stored, nil
}

// ApplyStatus moves the appointment to the given status unless its current
// status is terminal. The change is recorded on the outbox in the same
// transaction.
func (s *Service) ApplyStatus(ctx context.Context, companyID, id uuid.UUID, status enums.AppointmentStatus) (*models.Appointment, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid appointment status")
	}
	var stored *models.Appointment
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		appointment, err := repo.FindByIDForCompany(ctx, companyID, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
			}
			return err
		}
		if appointment.Status != status {
			if err := s.transition(ctx, tx, repo, appointment, status); err != nil {
				return err
			}
		}
		stored, err = repo.FindByID(ctx, appointment.ID)
		return err
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply appointment status")
	}
	return stored, nil
}

func (s *Service) transition(ctx context.Context, tx *gorm.DB, repo *Repository, appointment *models.Appointment, status enums.AppointmentStatus) error {
	applied, err := repo.ApplyStatus(ctx, appointment.ID, status)
	if err != nil {
		return err
	}
	if !applied {
		// Terminal row; an out-of-order or replayed delivery is a no-op.
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"appointment_id": appointment.ID.String(),
				"from":           appointment.Status,
				"to":             status,
			})
			s.logg.Info(logCtx, "skipping status change on terminal appointment")
		}
		return nil
	}
	if s.events == nil {
		return nil
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventAppointmentStatusChanged,
		AggregateType: enums.AggregateAppointment,
		AggregateID:   appointment.ID,
		Version:       1,
		Data: payloads.AppointmentStatusChangedEvent{
			AppointmentID: appointment.ID,
			CompanyID:     appointment.CompanyID,
			From:          appointment.Status,
			To:            status,
		},
	})
}

// GetByExternalID loads an appointment by its CRM id within a tenant.
func (s *Service) GetByExternalID(ctx context.Context, companyID uuid.UUID, externalID string) (*models.Appointment, error) {
	appointment, err := s.repo.FindByExternalID(ctx, companyID, externalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load appointment")
	}
	return appointment, nil
}

// SetAttribution stamps the resolved traffic source onto the appointment.
func (s *Service) SetAttribution(ctx context.Context, companyID, id uuid.UUID, trafficSource, leadSource string, confidence float64) error {
	if _, err := s.repo.FindByIDForCompany(ctx, companyID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load appointment")
	}
	if err := s.repo.SetAttribution(ctx, id, trafficSource, leadSource, confidence); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store attribution")
	}
	return nil
}

// Get loads an appointment, enforcing tenant ownership.
func (s *Service) Get(ctx context.Context, companyID, id uuid.UUID) (*models.Appointment, error) {
	appointment, err := s.repo.FindByIDForCompany(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load appointment")
	}
	return appointment, nil
}
