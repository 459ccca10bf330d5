package pcn

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/closetrack-backend/internal/appointments"
	"github.com/angelmondragon/closetrack-backend/internal/fields"
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

// ServiceParams wires the orchestrator's collaborators.
type ServiceParams struct {
	Appointments      *appointments.Repository
	Changelog         *ChangelogRepository
	Drafts            *DraftRepository
	Events            outboxEmitter
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service is the PCN submission orchestrator: it finalizes an appointment's
// outcome, keeps the append-only audit trail and runs the draft review flow.
type Service struct {
	appts     *appointments.Repository
	changelog *ChangelogRepository
	drafts    *DraftRepository
	events    outboxEmitter
	txRunner  txRunner
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Appointments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "appointment repo required")
	}
	if params.Changelog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "changelog repo required")
	}
	if params.Drafts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "draft repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		appts:     params.Appointments,
		changelog: params.Changelog,
		drafts:    params.Drafts,
		events:    params.Events,
		txRunner:  params.TransactionRunner,
		logg:      params.Logger,
	}, nil
}

// SubmitParams is a canonical post-call note submission.
type SubmitParams struct {
	CompanyID     uuid.UUID
	AppointmentID uuid.UUID
	Source        enums.PCNSource
	Actor         string
	Values        fields.PCNValues
	// StrictValidation makes a missing or cross-tenant appointment a hard
	// failure. Automated callers leave it off and accept a skipped no-op.
	StrictValidation bool
	// Correction lets a human explicitly overwrite an already-submitted
	// note. Automated sources can never set it.
	Correction bool
}

// Submit finalizes the appointment's outcome. The pcnSubmitted flag only
// moves false to true; an automated re-submission is rejected, and a human
// correction is a distinct explicit action that never clears the flag.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*models.Appointment, error) {
	if !params.Values.Outcome.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnsupportedOutcome, "call outcome missing or not recognized")
	}
	if params.Correction && params.Source != enums.PCNSourceHuman {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "corrections must come from a human")
	}

	var stored *models.Appointment
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.appts.WithTx(tx)
		appointment, err := repo.FindByIDForCompany(ctx, params.CompanyID, params.AppointmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if !params.StrictValidation {
					if s.logg != nil {
						logCtx := s.logg.WithField(ctx, "appointment_id", params.AppointmentID.String())
						s.logg.Warn(logCtx, "pcn submission for unknown appointment skipped")
					}
					return nil
				}
				return pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load appointment")
		}

		if appointment.PCNSubmitted && !params.Correction {
			return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "post-call note already submitted")
		}

		target := params.Values.Outcome.Status()
		if appointment.Status != target {
			if err := s.transition(ctx, tx, repo, appointment, target); err != nil {
				return err
			}
		}

		firstSubmission := !appointment.PCNSubmitted
		s.applyValues(appointment, params.Values)
		if firstSubmission {
			now := time.Now()
			appointment.PCNSubmitted = true
			appointment.PCNSubmittedAt = &now
		}
		if err := repo.ApplyPCNFields(ctx, appointment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist post-call note")
		}

		notes := params.Values.Notes
		if params.Correction {
			notes = strings.TrimSpace("correction: " + notes)
		}
		err = s.changelog.WithTx(tx).Append(ctx, &models.PCNChangelogEntry{
			CompanyID:     appointment.CompanyID,
			AppointmentID: appointment.ID,
			Action:        enums.ChangelogActionSubmitted,
			Source:        params.Source,
			Actor:         params.Actor,
			Notes:         notes,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append changelog entry")
		}

		if s.events != nil && firstSubmission {
			err = s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPCNSubmitted,
				AggregateType: enums.AggregateAppointment,
				AggregateID:   appointment.ID,
				Version:       1,
				Data: payloads.PCNSubmittedEvent{
					AppointmentID: appointment.ID,
					CompanyID:     appointment.CompanyID,
					Outcome:       params.Values.Outcome,
					Source:        params.Source,
					CashCollected: appointment.CashCollected,
					SubmittedAt:   *appointment.PCNSubmittedAt,
				},
			})
			if err != nil {
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "submit post-call note")
	}
	return stored, nil
}

// applyValues copies the canonical submission onto the appointment row. Cash
// collected is only meaningful on a signed outcome; absent stays absent.
func (s *Service) applyValues(appointment *models.Appointment, values fields.PCNValues) {
	outcome := values.Outcome
	appointment.PCNOutcome = &outcome
	appointment.PCNNotes = values.Notes
	appointment.PCNQualificationStatus = values.QualificationStatus
	appointment.PCNObjection = values.Objection
	appointment.PCNNurtureType = values.NurtureType
	appointment.PCNFollowUpScheduled = values.FollowUpScheduled == fields.BoolTrue
	appointment.PCNFollowUpDate = values.FollowUpDate
	appointment.PCNCancellationReason = values.CancellationReason
	appointment.PCNOfferMade = tristatePtr(values.OfferMade)
	appointment.PCNNoShowCommunicative = tristatePtr(values.NoShowCommunicative)
	appointment.PCNDisqualificationNote = values.DisqualificationReason
	if outcome == enums.CallOutcomeSigned && values.CashCollected != nil {
		appointment.CashCollected = values.CashCollected
	}
}

func (s *Service) transition(ctx context.Context, tx *gorm.DB, repo *appointments.Repository, appointment *models.Appointment, target enums.AppointmentStatus) error {
	applied, err := repo.ApplyStatus(ctx, appointment.ID, target)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply outcome status")
	}
	if !applied {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"appointment_id": appointment.ID.String(),
				"from":           appointment.Status,
				"to":             target,
			})
			s.logg.Info(logCtx, "outcome does not move a terminal appointment")
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
			To:            target,
		},
	})
}

func tristatePtr(value fields.Tristate) *bool {
	switch value {
	case fields.BoolTrue:
		v := true
		return &v
	case fields.BoolFalse:
		v := false
		return &v
	default:
		return nil
	}
}

// DraftParams stores an AI- or survey-produced candidate without touching
// the appointment.
type DraftParams struct {
	CompanyID     uuid.UUID
	AppointmentID uuid.UUID
	Source        enums.PCNSource
	Values        fields.PCNValues
}

// SaveDraft parks a candidate submission for review. The appointment's
// status is untouched until a reviewer decides.
func (s *Service) SaveDraft(ctx context.Context, params DraftParams) (*models.PCNDraft, error) {
	if !params.Values.Outcome.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnsupportedOutcome, "call outcome missing or not recognized")
	}
	if _, err := s.appts.FindByIDForCompany(ctx, params.CompanyID, params.AppointmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load appointment")
	}
	payload, err := json.Marshal(params.Values)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode draft payload")
	}
	draft := &models.PCNDraft{
		CompanyID:     params.CompanyID,
		AppointmentID: params.AppointmentID,
		Source:        params.Source,
		Payload:       payload,
	}
	if err := s.drafts.Create(ctx, draft); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store draft")
	}
	return draft, nil
}

// Review decisions.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ReviewParams resolves the pending draft on an appointment.
type ReviewParams struct {
	CompanyID     uuid.UUID
	AppointmentID uuid.UUID
	Decision      string
	Reviewer      string
	Reason        string
}

// Review approves or rejects the appointment's pending draft. Approval
// re-invokes the normal submission path with the stored candidate; rejection
// discards it. Both leave a changelog entry.
func (s *Service) Review(ctx context.Context, params ReviewParams) (*models.PCNDraft, error) {
	if params.Decision != DecisionApprove && params.Decision != DecisionReject {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be approve or reject")
	}

	draft, err := s.drafts.FindPendingByAppointment(ctx, params.CompanyID, params.AppointmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no pending draft for appointment")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load draft")
	}

	if params.Decision == DecisionApprove {
		var values fields.PCNValues
		if err := json.Unmarshal(draft.Payload, &values); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode draft payload")
		}
		if _, err := s.Submit(ctx, SubmitParams{
			CompanyID:        params.CompanyID,
			AppointmentID:    params.AppointmentID,
			Source:           draft.Source,
			Actor:            params.Reviewer,
			Values:           values,
			StrictValidation: true,
		}); err != nil {
			return nil, err
		}
	}

	status := enums.DraftStatusApproved
	action := enums.ChangelogActionApproved
	if params.Decision == DecisionReject {
		status = enums.DraftStatusRejected
		action = enums.ChangelogActionRejected
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		closed, err := s.drafts.WithTx(tx).SetReviewed(ctx, draft.ID, status, params.Reviewer, params.Reason)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "close draft")
		}
		if !closed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "draft already reviewed")
		}
		return s.changelog.WithTx(tx).Append(ctx, &models.PCNChangelogEntry{
			CompanyID:     params.CompanyID,
			AppointmentID: params.AppointmentID,
			Action:        action,
			Source:        draft.Source,
			Actor:         params.Reviewer,
			Notes:         params.Reason,
		})
	})
	if err != nil {
		return nil, err
	}
	draft.Status = status
	draft.Reviewer = params.Reviewer
	draft.ReviewReason = params.Reason
	return draft, nil
}

// Changelog returns the appointment's audit trail.
func (s *Service) Changelog(ctx context.Context, companyID, appointmentID uuid.UUID) ([]models.PCNChangelogEntry, error) {
	rows, err := s.changelog.ListByAppointment(ctx, companyID, appointmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list changelog")
	}
	return rows, nil
}
