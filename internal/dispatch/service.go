package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/closetrack-backend/internal/appointments"
	"github.com/angelmondragon/closetrack-backend/internal/attribution"
	"github.com/angelmondragon/closetrack-backend/internal/fields"
	"github.com/angelmondragon/closetrack-backend/internal/payments"
	"github.com/angelmondragon/closetrack-backend/internal/pcn"
	"github.com/angelmondragon/closetrack-backend/pkg/config"
	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
	"github.com/angelmondragon/closetrack-backend/pkg/metrics"
)

type tenantResolver interface {
	ResolveByLocation(ctx context.Context, externalLocationID string) (*models.Company, error)
	ResolveBySurveySecret(ctx context.Context, companyID uuid.UUID, secret string) (*models.Company, error)
	AutoSubmitAllowed(company *models.Company, source string) bool
}

type eventLog interface {
	Append(ctx context.Context, processor enums.Processor, eventType string, payload json.RawMessage) (*models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, companyID *uuid.UUID, handlerErr error) error
}

type appointmentWriter interface {
	Upsert(ctx context.Context, params appointments.UpsertParams) (*models.Appointment, error)
	ApplyStatus(ctx context.Context, companyID, id uuid.UUID, status enums.AppointmentStatus) (*models.Appointment, error)
	GetByExternalID(ctx context.Context, companyID uuid.UUID, externalID string) (*models.Appointment, error)
	SetAttribution(ctx context.Context, companyID, id uuid.UUID, trafficSource, leadSource string, confidence float64) error
}

type contactWriter interface {
	Upsert(ctx context.Context, contact *models.Contact) (*models.Contact, error)
}

type calendarWriter interface {
	Upsert(ctx context.Context, calendar *models.Calendar) (*models.Calendar, error)
}

type closerDirectory interface {
	FindByEmail(ctx context.Context, companyID uuid.UUID, email string) (*models.User, error)
}

type sourceResolver interface {
	Resolve(ctx context.Context, input attribution.Input) (attribution.Result, error)
}

type paymentIngestor interface {
	Ingest(ctx context.Context, params payments.IngestParams) (*models.Sale, error)
}

type pcnSubmitter interface {
	Submit(ctx context.Context, params pcn.SubmitParams) (*models.Appointment, error)
	SaveDraft(ctx context.Context, params pcn.DraftParams) (*models.PCNDraft, error)
}

type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Delivery is one inbound webhook request as seen at the transport boundary.
type Delivery struct {
	EventType string
	Signature string
	Timestamp string
	Body      []byte
	// Survey channel authentication: the sender cannot set headers.
	CompanyParam string
	SecretParam  string
}

// Outcome reports what happened to a delivery. HandlerErr is the absorbed
// post-authentication failure recorded on the event row; the transport layer
// still answers success for it.
type Outcome struct {
	Event      *models.WebhookEvent
	CompanyID  *uuid.UUID
	HandlerErr error
	Duplicate  bool
}

// DispatcherParams wires the pipeline entrypoint.
type DispatcherParams struct {
	Verifier     *Verifier
	EventLog     eventLog
	Tenants      tenantResolver
	Appointments appointmentWriter
	Contacts     contactWriter
	Calendars    calendarWriter
	Closers      closerDirectory
	Attribution  sourceResolver
	Payments     paymentIngestor
	PCN          pcnSubmitter
	Dedupe       dedupeStore
	Metrics      *metrics.WebhookMetrics
	Webhook      config.WebhookConfig
	Logger       *logger.Logger
}

// Dispatcher verifies, logs and routes inbound webhooks. Authentication
// failures surface as 401s; every later failure is absorbed onto the event
// row so senders stop retrying payloads a retry cannot fix.
type Dispatcher struct {
	verifier *Verifier
	eventLog eventLog
	tenants  tenantResolver
	appts    appointmentWriter
	contacts contactWriter
	cals     calendarWriter
	closers  closerDirectory
	attrib   sourceResolver
	payments paymentIngestor
	pcn      pcnSubmitter
	dedupe   dedupeStore
	metrics  *metrics.WebhookMetrics
	cfg      config.WebhookConfig
	logg     *logger.Logger
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "verifier required")
	}
	if params.EventLog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event log required")
	}
	if params.Tenants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tenant resolver required")
	}
	if params.Appointments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "appointment writer required")
	}
	return &Dispatcher{
		verifier: params.Verifier,
		eventLog: params.EventLog,
		tenants:  params.Tenants,
		appts:    params.Appointments,
		contacts: params.Contacts,
		cals:     params.Calendars,
		closers:  params.Closers,
		attrib:   params.Attribution,
		payments: params.Payments,
		pcn:      params.PCN,
		dedupe:   params.Dedupe,
		metrics:  params.Metrics,
		cfg:      params.Webhook,
		logg:     params.Logger,
	}, nil
}

// HandleCRM processes a delivery from the CRM webhook channel.
func (d *Dispatcher) HandleCRM(ctx context.Context, delivery Delivery) (*Outcome, error) {
	started := time.Now()
	processor := enums.ProcessorGHL
	if d.metrics != nil {
		d.metrics.IncReceived(string(processor))
		defer func() { d.metrics.ObserveDuration(string(processor), time.Since(started)) }()
	}

	payload, parseErr := decodePayload(delivery.Body)
	if parseErr != nil {
		// Unparseable bodies are still logged; retrying cannot fix them.
		return d.absorb(ctx, processor, delivery, nil, parseErr)
	}
	view := fields.NewView(payload)

	locationID, _ := view.GetString(fields.FieldLocationID)
	company, err := d.tenants.ResolveByLocation(ctx, locationID)
	if err != nil {
		return d.absorb(ctx, processor, delivery, nil, err)
	}

	verified, err := d.verifier.Verify(company.WebhookSecret, delivery.Signature, delivery.Timestamp, delivery.Body)
	if err != nil {
		return nil, err
	}
	if !verified && d.logg != nil {
		logCtx := d.logg.WithCompanyID(ctx, company.ID.String())
		d.logg.Warn(logCtx, "webhook accepted without signature verification")
	}

	event, err := d.eventLog.Append(ctx, processor, delivery.EventType, delivery.Body)
	if err != nil {
		return nil, err
	}

	if dup, err := d.seenBefore(ctx, string(processor), delivery.Body); err == nil && dup {
		return d.finishDuplicate(ctx, processor, event, &company.ID)
	}

	var handlerErr error
	switch canonicalEventType(delivery.EventType) {
	case eventAppointmentUpsert:
		handlerErr = d.handleAppointmentUpsert(ctx, company, payload, view)
	case eventAppointmentCancel:
		handlerErr = d.handleAppointmentCancel(ctx, company, view)
	case eventContactUpsert:
		_, handlerErr = d.upsertContact(ctx, company, payload, view)
	case eventSurveySubmission:
		handlerErr = d.handleSurvey(ctx, company, payload, view)
	default:
		handlerErr = pkgerrors.New(pkgerrors.CodeValidation, "unsupported event type: "+delivery.EventType)
	}

	return d.finish(ctx, processor, delivery.EventType, event, &company.ID, handlerErr)
}

// HandleSurvey processes the post-call survey channel, authenticated by a
// company+secret query pair because the sender cannot set headers.
func (d *Dispatcher) HandleSurvey(ctx context.Context, delivery Delivery) (*Outcome, error) {
	started := time.Now()
	processor := enums.ProcessorSurvey
	if d.metrics != nil {
		d.metrics.IncReceived(string(processor))
		defer func() { d.metrics.ObserveDuration(string(processor), time.Since(started)) }()
	}

	companyID, err := uuid.Parse(delivery.CompanyParam)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "company query parameter missing or malformed")
	}
	company, err := d.tenants.ResolveBySurveySecret(ctx, companyID, delivery.SecretParam)
	if err != nil {
		return nil, err
	}

	payload, parseErr := decodePayload(delivery.Body)
	if parseErr != nil {
		return d.absorb(ctx, processor, delivery, &company.ID, parseErr)
	}

	event, err := d.eventLog.Append(ctx, processor, "survey.submission", delivery.Body)
	if err != nil {
		return nil, err
	}

	if dup, err := d.seenBefore(ctx, string(processor), delivery.Body); err == nil && dup {
		return d.finishDuplicate(ctx, processor, event, &company.ID)
	}

	handlerErr := d.handleSurvey(ctx, company, payload, fields.NewView(payload))
	return d.finish(ctx, processor, "survey.submission", event, &company.ID, handlerErr)
}

// HandlePayment processes a payment processor notification.
func (d *Dispatcher) HandlePayment(ctx context.Context, processor enums.Processor, delivery Delivery) (*Outcome, error) {
	started := time.Now()
	if d.metrics != nil {
		d.metrics.IncReceived(string(processor))
		defer func() { d.metrics.ObserveDuration(string(processor), time.Since(started)) }()
	}

	payload, parseErr := decodePayload(delivery.Body)
	if parseErr != nil {
		return d.absorb(ctx, processor, delivery, nil, parseErr)
	}
	view := fields.NewView(payload)

	locationID, _ := view.GetString(fields.FieldLocationID)
	company, err := d.tenants.ResolveByLocation(ctx, locationID)
	if err != nil {
		return d.absorb(ctx, processor, delivery, nil, err)
	}

	verified, err := d.verifier.Verify(company.WebhookSecret, delivery.Signature, delivery.Timestamp, delivery.Body)
	if err != nil {
		return nil, err
	}
	if !verified && d.logg != nil {
		logCtx := d.logg.WithCompanyID(ctx, company.ID.String())
		d.logg.Warn(logCtx, "payment webhook accepted without signature verification")
	}

	event, err := d.eventLog.Append(ctx, processor, delivery.EventType, delivery.Body)
	if err != nil {
		return nil, err
	}

	handlerErr := d.handlePayment(ctx, company, processor, view)
	return d.finish(ctx, processor, delivery.EventType, event, &company.ID, handlerErr)
}

// absorb logs the delivery and records the failure as processed so the
// sender sees success and stops retrying.
func (d *Dispatcher) absorb(ctx context.Context, processor enums.Processor, delivery Delivery, companyID *uuid.UUID, cause error) (*Outcome, error) {
	event, err := d.eventLog.Append(ctx, processor, delivery.EventType, delivery.Body)
	if err != nil {
		return nil, err
	}
	return d.finish(ctx, processor, delivery.EventType, event, companyID, cause)
}

// finishDuplicate closes out a redelivered body. The event still lands in the
// log with a duplicate note; only the handler is skipped.
func (d *Dispatcher) finishDuplicate(ctx context.Context, processor enums.Processor, event *models.WebhookEvent, companyID *uuid.UUID) (*Outcome, error) {
	note := pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "duplicate delivery")
	if err := d.eventLog.MarkProcessed(ctx, event.ID, companyID, note); err != nil {
		return nil, err
	}
	if d.metrics != nil {
		d.metrics.IncDuplicate(string(processor))
	}
	return &Outcome{Event: event, CompanyID: companyID, Duplicate: true}, nil
}

func (d *Dispatcher) finish(ctx context.Context, processor enums.Processor, eventType string, event *models.WebhookEvent, companyID *uuid.UUID, handlerErr error) (*Outcome, error) {
	if err := d.eventLog.MarkProcessed(ctx, event.ID, companyID, handlerErr); err != nil {
		return nil, err
	}
	if d.metrics != nil {
		if handlerErr != nil {
			d.metrics.IncFailed(string(processor))
		} else {
			d.metrics.IncProcessed(string(processor), eventType)
		}
	}
	return &Outcome{Event: event, CompanyID: companyID, HandlerErr: handlerErr}, nil
}

// seenBefore marks the delivery body in the dedupe store. Errors are treated
// as "not seen": the store is an optimization, the database uniqueness
// constraints are the guarantee.
func (d *Dispatcher) seenBefore(ctx context.Context, scope string, body []byte) (bool, error) {
	if d.dedupe == nil {
		return false, nil
	}
	sum := sha256.Sum256(body)
	key := d.dedupe.IdempotencyKey("webhook:"+scope, hex.EncodeToString(sum[:]))
	fresh, err := d.dedupe.SetNX(ctx, key, 1, d.cfg.DedupeTTL)
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

func decodePayload(body []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payload malformed")
	}
	return payload, nil
}
