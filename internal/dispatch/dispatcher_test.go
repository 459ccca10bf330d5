package dispatch

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/internal/appointments"
	"github.com/angelmondragon/closetrack-backend/internal/attribution"
	"github.com/angelmondragon/closetrack-backend/internal/payments"
	"github.com/angelmondragon/closetrack-backend/internal/pcn"
	"github.com/angelmondragon/closetrack-backend/pkg/config"
	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/closetrack-backend/pkg/errors"
)

type fakeEventLog struct {
	appended  []*models.WebhookEvent
	processed map[uuid.UUID]error
}

func newFakeEventLog() *fakeEventLog {
	return &fakeEventLog{processed: map[uuid.UUID]error{}}
}

func (f *fakeEventLog) Append(_ context.Context, processor enums.Processor, eventType string, payload json.RawMessage) (*models.WebhookEvent, error) {
	event := &models.WebhookEvent{
		ID:        uuid.New(),
		Processor: processor,
		EventType: eventType,
		Payload:   payload,
	}
	f.appended = append(f.appended, event)
	return event, nil
}

func (f *fakeEventLog) MarkProcessed(_ context.Context, id uuid.UUID, _ *uuid.UUID, handlerErr error) error {
	f.processed[id] = handlerErr
	return nil
}

type fakeTenants struct {
	company    *models.Company
	autoSubmit bool
}

func (f *fakeTenants) ResolveByLocation(_ context.Context, externalLocationID string) (*models.Company, error) {
	if f.company != nil && externalLocationID == f.company.ExternalLocationID {
		return f.company, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeTenantUnresolved, "no company for location")
}

func (f *fakeTenants) ResolveBySurveySecret(_ context.Context, companyID uuid.UUID, secret string) (*models.Company, error) {
	if f.company != nil && companyID == f.company.ID && secret == f.company.SurveySecret {
		return f.company, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "survey secret mismatch")
}

func (f *fakeTenants) AutoSubmitAllowed(*models.Company, string) bool {
	return f.autoSubmit
}

type fakeAppointments struct {
	upserts  []appointments.UpsertParams
	statuses []enums.AppointmentStatus
	byExt    map[string]*models.Appointment
	attribs  int
}

func (f *fakeAppointments) Upsert(_ context.Context, params appointments.UpsertParams) (*models.Appointment, error) {
	f.upserts = append(f.upserts, params)
	return &models.Appointment{ID: uuid.New(), CompanyID: params.CompanyID, ExternalID: params.ExternalID}, nil
}

func (f *fakeAppointments) ApplyStatus(_ context.Context, _, _ uuid.UUID, status enums.AppointmentStatus) (*models.Appointment, error) {
	f.statuses = append(f.statuses, status)
	return &models.Appointment{Status: status}, nil
}

func (f *fakeAppointments) GetByExternalID(_ context.Context, _ uuid.UUID, externalID string) (*models.Appointment, error) {
	if appt, ok := f.byExt[externalID]; ok {
		return appt, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
}

func (f *fakeAppointments) SetAttribution(context.Context, uuid.UUID, uuid.UUID, string, string, float64) error {
	f.attribs++
	return nil
}

type fakeResolver struct {
	result attribution.Result
}

func (f *fakeResolver) Resolve(context.Context, attribution.Input) (attribution.Result, error) {
	return f.result, nil
}

type fakeIngestor struct {
	ingested []payments.IngestParams
}

func (f *fakeIngestor) Ingest(_ context.Context, params payments.IngestParams) (*models.Sale, error) {
	f.ingested = append(f.ingested, params)
	return &models.Sale{ID: uuid.New()}, nil
}

type fakePCN struct {
	submissions []pcn.SubmitParams
	drafts      []pcn.DraftParams
}

func (f *fakePCN) Submit(_ context.Context, params pcn.SubmitParams) (*models.Appointment, error) {
	f.submissions = append(f.submissions, params)
	return &models.Appointment{}, nil
}

func (f *fakePCN) SaveDraft(_ context.Context, params pcn.DraftParams) (*models.PCNDraft, error) {
	f.drafts = append(f.drafts, params)
	return &models.PCNDraft{Status: enums.DraftStatusPending}, nil
}

type fakeDedupe struct {
	seen map[string]bool
}

func (f *fakeDedupe) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeDedupe) IdempotencyKey(scope, id string) string {
	return "ct:idempotency:" + scope + ":" + id
}

type dispatcherFixture struct {
	d       *Dispatcher
	log     *fakeEventLog
	tenants *fakeTenants
	appts   *fakeAppointments
	pcn     *fakePCN
	ingest  *fakeIngestor
	company *models.Company
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	company := &models.Company{
		ID:                 uuid.New(),
		ExternalLocationID: "loc_123",
		WebhookSecret:      "topsecret",
		SurveySecret:       "survey-secret",
	}
	log := newFakeEventLog()
	tenants := &fakeTenants{company: company, autoSubmit: true}
	appts := &fakeAppointments{byExt: map[string]*models.Appointment{}}
	pcnSvc := &fakePCN{}
	ingest := &fakeIngestor{}
	d, err := NewDispatcher(DispatcherParams{
		Verifier:     testVerifier(false),
		EventLog:     log,
		Tenants:      tenants,
		Appointments: appts,
		Attribution:  &fakeResolver{},
		Payments:     ingest,
		PCN:          pcnSvc,
		Dedupe:       &fakeDedupe{},
		Webhook:      config.WebhookConfig{ReplayWindow: 5 * time.Minute, DedupeTTL: time.Hour},
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return &dispatcherFixture{d: d, log: log, tenants: tenants, appts: appts, pcn: pcnSvc, ingest: ingest, company: company}
}

func signedDelivery(secret, eventType string, body []byte) Delivery {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	return Delivery{
		EventType: eventType,
		Signature: Sign(secret, ts, body),
		Timestamp: ts,
		Body:      body,
	}
}

func TestHandleCRMRejectsBadSignature(t *testing.T) {
	fx := newDispatcherFixture(t)
	body := []byte(`{"locationId":"loc_123","appointmentId":"a1","startTime":"2026-08-01T10:00:00Z"}`)
	delivery := signedDelivery("wrong-secret", "AppointmentCreate", body)

	_, err := fx.d.HandleCRM(context.Background(), delivery)
	if !pkgerrors.HasCode(err, pkgerrors.CodeSignatureInvalid) {
		t.Fatalf("expected 401-class error, got %v", err)
	}
	if len(fx.log.appended) != 0 {
		t.Fatal("rejected deliveries must not reach the event log")
	}
}

func TestHandleCRMUnresolvableTenantIsAbsorbed(t *testing.T) {
	fx := newDispatcherFixture(t)
	body := []byte(`{"locationId":"loc_unknown","appointmentId":"a1"}`)
	delivery := signedDelivery("topsecret", "AppointmentCreate", body)

	outcome, err := fx.d.HandleCRM(context.Background(), delivery)
	if err != nil {
		t.Fatalf("unresolvable tenant must not error the transport, got %v", err)
	}
	if outcome.HandlerErr == nil || !pkgerrors.HasCode(outcome.HandlerErr, pkgerrors.CodeTenantUnresolved) {
		t.Fatalf("expected recorded tenant-unresolved, got %v", outcome.HandlerErr)
	}
	if len(fx.log.appended) != 1 {
		t.Fatal("the delivery should still be logged")
	}
	if recorded := fx.log.processed[outcome.Event.ID]; recorded == nil {
		t.Fatal("the event should be marked processed with the error attached")
	}
}

func TestHandleCRMRoutesAppointmentAliases(t *testing.T) {
	fx := newDispatcherFixture(t)
	body := []byte(`{"locationId":"loc_123","appointmentId":"appt_1","startTime":"2026-08-01T10:00:00Z"}`)

	for _, spelling := range []string{"AppointmentCreate", "appointment_update", "APPOINTMENT-RESCHEDULED"} {
		outcome, err := fx.d.HandleCRM(context.Background(), signedDelivery("topsecret", spelling, append([]byte(nil), body...)))
		if err != nil {
			t.Fatalf("HandleCRM(%q): %v", spelling, err)
		}
		if outcome.Duplicate {
			t.Fatalf("HandleCRM(%q): unexpected duplicate", spelling)
		}
		if outcome.HandlerErr != nil {
			t.Fatalf("HandleCRM(%q): handler error %v", spelling, outcome.HandlerErr)
		}
		// Body is identical across spellings; defeat the dedupe guard.
		body = append(body, ' ')
	}
	if len(fx.appts.upserts) != 3 {
		t.Fatalf("expected 3 upserts, got %d", len(fx.appts.upserts))
	}
}

func TestHandleCRMDuplicateBodyShortCircuits(t *testing.T) {
	fx := newDispatcherFixture(t)
	body := []byte(`{"locationId":"loc_123","appointmentId":"appt_1","startTime":"2026-08-01T10:00:00Z"}`)

	first, err := fx.d.HandleCRM(context.Background(), signedDelivery("topsecret", "AppointmentCreate", body))
	if err != nil || first.Duplicate {
		t.Fatalf("first delivery should process, got %+v %v", first, err)
	}
	second, err := fx.d.HandleCRM(context.Background(), signedDelivery("topsecret", "AppointmentCreate", body))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("identical body should be flagged as duplicate")
	}
	if len(fx.appts.upserts) != 1 {
		t.Fatalf("replay must not re-run the handler, got %d upserts", len(fx.appts.upserts))
	}
	if len(fx.log.appended) != 2 {
		t.Fatalf("every inbound delivery must land in the event log, got %d", len(fx.log.appended))
	}
	if recorded := fx.log.processed[second.Event.ID]; !pkgerrors.HasCode(recorded, pkgerrors.CodeAlreadyProcessed) {
		t.Fatalf("duplicate event should carry a duplicate note, got %v", recorded)
	}
}

func TestHandleCRMCancelRoutesToStatusChange(t *testing.T) {
	fx := newDispatcherFixture(t)
	fx.appts.byExt["appt_9"] = &models.Appointment{ID: uuid.New(), CompanyID: fx.company.ID, ExternalID: "appt_9"}
	body := []byte(`{"locationId":"loc_123","appointmentId":"appt_9"}`)

	outcome, err := fx.d.HandleCRM(context.Background(), signedDelivery("topsecret", "AppointmentCancelled", body))
	if err != nil {
		t.Fatalf("HandleCRM: %v", err)
	}
	if outcome.HandlerErr != nil {
		t.Fatalf("handler error: %v", outcome.HandlerErr)
	}
	if len(fx.appts.statuses) != 1 || fx.appts.statuses[0] != enums.AppointmentStatusCancelled {
		t.Fatalf("expected cancelled transition, got %v", fx.appts.statuses)
	}
}

func TestHandleCRMMalformedBodyIsAbsorbed(t *testing.T) {
	fx := newDispatcherFixture(t)
	delivery := signedDelivery("topsecret", "AppointmentCreate", []byte(`{not json`))

	outcome, err := fx.d.HandleCRM(context.Background(), delivery)
	if err != nil {
		t.Fatalf("malformed body must not error the transport, got %v", err)
	}
	if outcome.HandlerErr == nil {
		t.Fatal("the parse failure should be recorded on the event")
	}
	if len(fx.log.appended) != 1 {
		t.Fatal("the raw body should still be logged for diagnosis")
	}
}

func TestHandleCRMUnknownEventTypeIsRecorded(t *testing.T) {
	fx := newDispatcherFixture(t)
	body := []byte(`{"locationId":"loc_123"}`)
	outcome, err := fx.d.HandleCRM(context.Background(), signedDelivery("topsecret", "SomethingNovel", body))
	if err != nil {
		t.Fatalf("HandleCRM: %v", err)
	}
	if outcome.HandlerErr == nil {
		t.Fatal("unknown event types should be recorded as handler failures")
	}
}

func TestHandleSurveyAutoSubmits(t *testing.T) {
	fx := newDispatcherFixture(t)
	fx.appts.byExt["appt_7"] = &models.Appointment{ID: uuid.New(), CompanyID: fx.company.ID, ExternalID: "appt_7"}
	body := []byte(`{"appointmentId":"appt_7","PCN - Call Outcome":"Signed","PCN - Cash Collected":"$1,500"}`)

	outcome, err := fx.d.HandleSurvey(context.Background(), Delivery{
		Body:         body,
		CompanyParam: fx.company.ID.String(),
		SecretParam:  "survey-secret",
	})
	if err != nil {
		t.Fatalf("HandleSurvey: %v", err)
	}
	if outcome.HandlerErr != nil {
		t.Fatalf("handler error: %v", outcome.HandlerErr)
	}
	if len(fx.pcn.submissions) != 1 {
		t.Fatalf("expected direct submission, got %d", len(fx.pcn.submissions))
	}
	sub := fx.pcn.submissions[0]
	if sub.Source != enums.PCNSourceSurvey || sub.Values.Outcome != enums.CallOutcomeSigned {
		t.Fatalf("unexpected submission %+v", sub)
	}
	if sub.Values.CashCollected == nil || !sub.Values.CashCollected.Equal(decimal.RequireFromString("1500")) {
		t.Fatalf("cash collected = %v, want 1500", sub.Values.CashCollected)
	}
}

func TestHandleSurveyWithoutAutoSubmitDrafts(t *testing.T) {
	fx := newDispatcherFixture(t)
	fx.tenants.autoSubmit = false
	fx.appts.byExt["appt_7"] = &models.Appointment{ID: uuid.New(), CompanyID: fx.company.ID, ExternalID: "appt_7"}
	body := []byte(`{"appointmentId":"appt_7","PCN - Call Outcome":"Showed"}`)

	outcome, err := fx.d.HandleSurvey(context.Background(), Delivery{
		Body:         body,
		CompanyParam: fx.company.ID.String(),
		SecretParam:  "survey-secret",
	})
	if err != nil {
		t.Fatalf("HandleSurvey: %v", err)
	}
	if outcome.HandlerErr != nil {
		t.Fatalf("handler error: %v", outcome.HandlerErr)
	}
	if len(fx.pcn.submissions) != 0 || len(fx.pcn.drafts) != 1 {
		t.Fatalf("expected a draft, got %d submissions %d drafts", len(fx.pcn.submissions), len(fx.pcn.drafts))
	}
}

func TestHandleSurveyBadSecretIsRejected(t *testing.T) {
	fx := newDispatcherFixture(t)
	_, err := fx.d.HandleSurvey(context.Background(), Delivery{
		Body:         []byte(`{}`),
		CompanyParam: fx.company.ID.String(),
		SecretParam:  "guess",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeSignatureInvalid) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if len(fx.log.appended) != 0 {
		t.Fatal("unauthenticated surveys must not reach the event log")
	}
}

func TestHandlePaymentIngests(t *testing.T) {
	fx := newDispatcherFixture(t)
	body := []byte(`{"locationId":"loc_123","transactionId":"tx_55","amount":"$2,000","email":"buyer@example.com","paymentType":"installment"}`)

	outcome, err := fx.d.HandlePayment(context.Background(), enums.ProcessorStripe, signedDelivery("topsecret", "payment.received", body))
	if err != nil {
		t.Fatalf("HandlePayment: %v", err)
	}
	if outcome.HandlerErr != nil {
		t.Fatalf("handler error: %v", outcome.HandlerErr)
	}
	if len(fx.ingest.ingested) != 1 {
		t.Fatalf("expected one ingest, got %d", len(fx.ingest.ingested))
	}
	params := fx.ingest.ingested[0]
	if params.ExternalPaymentID != "tx_55" {
		t.Fatalf("payment id = %q", params.ExternalPaymentID)
	}
	if !params.Amount.Equal(decimal.RequireFromString("2000")) {
		t.Fatalf("amount = %s, want 2000", params.Amount)
	}
	if params.PaymentContext != enums.PaymentContextInstallment {
		t.Fatalf("payment context = %s", params.PaymentContext)
	}
	if params.Processor != enums.ProcessorStripe {
		t.Fatalf("processor = %s", params.Processor)
	}
}
