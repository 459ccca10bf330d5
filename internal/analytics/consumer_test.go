package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox"
)

func TestAnalyticsConsumerProcessesSaleMatched(t *testing.T) {
	inserter := &fakeInserter{}
	consumer := testConsumer(t, inserter, fakeIdempotency{
		check:    func(context.Context, string, uuid.UUID) (bool, error) { return false, nil },
		deleteFn: func(context.Context, string, uuid.UUID) error { return nil },
	})

	saleID := uuid.New()
	companyID := uuid.New()
	envelope := buildEnvelope(t, uuid.New(), map[string]any{
		"sale_id":        saleID.String(),
		"company_id":     companyID.String(),
		"appointment_id": uuid.NewString(),
		"matched_by":     "auto",
	})

	if err := consumer.Process(context.Background(), enums.EventSaleMatched, envelope); err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if len(inserter.rows) != 1 {
		t.Fatalf("expected 1 row inserted, got %d", len(inserter.rows))
	}
	row, ok := inserter.rows[0].(*reconciliationEventRow)
	if !ok {
		t.Fatalf("expected reconciliationEventRow, got %T", inserter.rows[0])
	}
	if row.EventType != string(enums.EventSaleMatched) {
		t.Fatalf("unexpected event type: %s", row.EventType)
	}
	if row.SaleID == nil || *row.SaleID != saleID.String() {
		t.Fatal("sale id mismatch")
	}
	if row.CompanyID == nil || *row.CompanyID != companyID.String() {
		t.Fatal("company id mismatch")
	}
	if row.CommissionID != nil {
		t.Fatal("commission id should be nil for a sale event")
	}
	if !row.Payload.Valid {
		t.Fatal("payload should be valid json")
	}
}

func TestAnalyticsConsumerSkipsUnknownEvents(t *testing.T) {
	inserter := &fakeInserter{}
	consumer := testConsumer(t, inserter, fakeIdempotency{
		check:    func(context.Context, string, uuid.UUID) (bool, error) { return false, nil },
		deleteFn: func(context.Context, string, uuid.UUID) error { return nil },
	})

	envelope := buildEnvelope(t, uuid.New(), map[string]any{})
	if err := consumer.Process(context.Background(), enums.OutboxEventType("webhook.raw"), envelope); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(inserter.rows) != 0 {
		t.Fatal("unfiltered events must not be written")
	}
}

func TestAnalyticsConsumerIsIdempotent(t *testing.T) {
	inserter := &fakeInserter{}
	consumer := testConsumer(t, inserter, fakeIdempotency{
		check:    func(context.Context, string, uuid.UUID) (bool, error) { return true, nil },
		deleteFn: func(context.Context, string, uuid.UUID) error { return nil },
	})

	envelope := buildEnvelope(t, uuid.New(), map[string]any{})
	if err := consumer.Process(context.Background(), enums.EventPCNSubmitted, envelope); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if len(inserter.rows) != 0 {
		t.Fatal("expected no rows inserted when idempotent")
	}
}

func TestAnalyticsConsumerDeletesOnInsertFailure(t *testing.T) {
	inserter := &fakeInserter{err: errors.New("bigquery down")}
	deleted := false
	consumer := testConsumer(t, inserter, fakeIdempotency{
		check: func(context.Context, string, uuid.UUID) (bool, error) { return false, nil },
		deleteFn: func(context.Context, string, uuid.UUID) error {
			deleted = true
			return nil
		},
	})

	envelope := buildEnvelope(t, uuid.New(), map[string]any{
		"company_id": uuid.NewString(),
	})
	if err := consumer.Process(context.Background(), enums.EventCommissionCreated, envelope); err == nil {
		t.Fatal("expected error when insert fails")
	}
	if !deleted {
		t.Fatal("expected idempotency key deletion on failure")
	}
}

func TestAnalyticsConsumerDeletesOnPayloadDecodeFailure(t *testing.T) {
	inserter := &fakeInserter{}
	deleted := false
	consumer := testConsumer(t, inserter, fakeIdempotency{
		check: func(context.Context, string, uuid.UUID) (bool, error) { return false, nil },
		deleteFn: func(context.Context, string, uuid.UUID) error {
			deleted = true
			return nil
		},
	})

	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       []byte("{invalid json"),
	}
	if err := consumer.Process(context.Background(), enums.EventPCNSubmitted, envelope); err == nil {
		t.Fatal("expected error for bad payload")
	}
	if !deleted {
		t.Fatal("expected idempotency key deletion on payload error")
	}
	if len(inserter.rows) != 0 {
		t.Fatal("expected no rows inserted on payload failure")
	}
}

type fakeInserter struct {
	rows []any
	err  error
}

func (f *fakeInserter) InsertRows(_ context.Context, _ string, rows []any) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

type fakeIdempotency struct {
	check    func(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	deleteFn func(ctx context.Context, consumer string, eventID uuid.UUID) error
}

func (f fakeIdempotency) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	return f.check(ctx, consumer, eventID)
}

func (f fakeIdempotency) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	return f.deleteFn(ctx, consumer, eventID)
}

func testConsumer(t *testing.T, inserter *fakeInserter, manager fakeIdempotency) *Consumer {
	t.Helper()
	return &Consumer{
		client:  inserter,
		table:   "reconciliation_events",
		manager: manager,
		logg: logger.New(logger.Options{
			ServiceName: "analytics-test",
			Output:      io.Discard,
		}),
		eventFilter: map[enums.OutboxEventType]struct{}{
			enums.EventPCNSubmitted:      {},
			enums.EventSaleMatched:       {},
			enums.EventCommissionCreated: {},
		},
	}
}

func buildEnvelope(t *testing.T, eventID uuid.UUID, payload any) outbox.PayloadEnvelope {
	t.Helper()
	bytes, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now(),
		Data:       bytes,
	}
}
