package webhookevents

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
)

// Service wraps the event log. Every inbound delivery is appended before any
// interpretation so that parse failures remain diagnosable.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event log repo required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// Append durably records a raw delivery. Bodies that are not valid JSON are
// wrapped so the jsonb column still accepts them and the original bytes stay
// diagnosable.
func (s *Service) Append(ctx context.Context, processor enums.Processor, eventType string, payload json.RawMessage) (*models.WebhookEvent, error) {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	} else if !json.Valid(payload) {
		payload = wrapRawPayload(payload)
	}
	if eventType == "" {
		eventType = "unknown"
	}
	event := &models.WebhookEvent{
		Processor: processor,
		EventType: eventType,
		Payload:   payload,
	}
	created, err := s.repo.Create(ctx, event)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append webhook event")
	}
	return created, nil
}

func wrapRawPayload(raw json.RawMessage) json.RawMessage {
	wrapped, err := json.Marshal(map[string]string{"raw": string(raw)})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return wrapped
}

// MarkProcessed records the outcome of handling an event. A handler error is
// attached to the row instead of being re-thrown to the transport layer.
func (s *Service) MarkProcessed(ctx context.Context, id uuid.UUID, companyID *uuid.UUID, handlerErr error) error {
	var processingError *string
	if handlerErr != nil {
		msg := handlerErr.Error()
		processingError = &msg
	}
	if err := s.repo.MarkProcessed(ctx, id, companyID, processingError); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark webhook event processed")
	}
	if handlerErr != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"webhook_event_id": id.String(),
			"handler_error":    handlerErr.Error(),
		})
		s.logg.Warn(logCtx, "webhook event processed with error")
	}
	return nil
}
