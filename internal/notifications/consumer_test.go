package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox/payloads"
)

type fakeSender struct {
	sent []Notification
	err  error
}

func (f *fakeSender) Send(_ context.Context, notification Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, notification)
	return nil
}

type memoryStore struct {
	keys map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if m.keys == nil {
		m.keys = map[string]string{}
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "ct:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func newTestConsumer(t *testing.T, sender Sender) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(&memoryStore{}, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return &Consumer{
		sender:      sender,
		idempotency: manager,
		logg:        logger.New(logger.Options{ServiceName: "notifications-test"}),
	}
}

func eventMessage(t *testing.T, eventType enums.OutboxEventType, payload any) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       envelope,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func TestProcessUnmatchedSaleNotifies(t *testing.T) {
	sender := &fakeSender{}
	consumer := newTestConsumer(t, sender)
	companyID := uuid.New()
	msg := eventMessage(t, enums.EventSaleUnmatched, payloads.SaleUnmatchedEvent{
		SaleID:    uuid.New(),
		CompanyID: companyID,
		Amount:    decimal.RequireFromString("1500"),
		Reason:    "no candidate cleared the accept threshold",
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(sender.sent))
	}
	sent := sender.sent[0]
	if sent.Kind != KindPaymentReview || sent.CompanyID != companyID {
		t.Fatalf("unexpected notification %+v", sent)
	}
}

func TestProcessCommissionCreatedTargetsUser(t *testing.T) {
	sender := &fakeSender{}
	consumer := newTestConsumer(t, sender)
	userID := uuid.New()
	msg := eventMessage(t, enums.EventCommissionCreated, payloads.CommissionCreatedEvent{
		CommissionID: uuid.New(),
		SaleID:       uuid.New(),
		CompanyID:    uuid.New(),
		UserID:       userID,
		Rate:         decimal.RequireFromString("0.1"),
		TotalAmount:  decimal.RequireFromString("150"),
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(sender.sent) != 1 || sender.sent[0].UserID == nil || *sender.sent[0].UserID != userID {
		t.Fatalf("commission notification should target the earning user, got %+v", sender.sent)
	}
}

func TestProcessSkipsUninterestingEvents(t *testing.T) {
	sender := &fakeSender{}
	consumer := newTestConsumer(t, sender)
	msg := eventMessage(t, enums.EventAppointmentStatusChanged, payloads.AppointmentStatusChangedEvent{})

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(sender.sent) != 0 {
		t.Fatal("status changes should not notify")
	}
}

func TestProcessIsIdempotentPerEvent(t *testing.T) {
	sender := &fakeSender{}
	consumer := newTestConsumer(t, sender)
	msg := eventMessage(t, enums.EventPCNSubmitted, payloads.PCNSubmittedEvent{
		AppointmentID: uuid.New(),
		CompanyID:     uuid.New(),
		Outcome:       enums.CallOutcomeSigned,
		Source:        enums.PCNSourceHuman,
		SubmittedAt:   time.Now().UTC(),
	})

	consumer.process(context.Background(), msg)
	consumer.process(context.Background(), msg)
	if len(sender.sent) != 1 {
		t.Fatalf("replayed event should notify once, got %d", len(sender.sent))
	}
}

func TestProcessAcksWhenSenderFails(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	consumer := newTestConsumer(t, sender)
	msg := eventMessage(t, enums.EventSaleUnmatched, payloads.SaleUnmatchedEvent{
		SaleID:    uuid.New(),
		CompanyID: uuid.New(),
		Amount:    decimal.RequireFromString("10"),
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("delivery failures are logged, not redelivered; got %+v", result)
	}
}

func TestProcessAcksMalformedEnvelope(t *testing.T) {
	sender := &fakeSender{}
	consumer := newTestConsumer(t, sender)
	msg := &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       []byte("{not json"),
		Attributes: map[string]string{"event_type": string(enums.EventSaleUnmatched)},
	}

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("malformed envelopes cannot be fixed by redelivery; got %+v", result)
	}
}
