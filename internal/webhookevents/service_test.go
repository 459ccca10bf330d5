package webhookevents

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

func openEventLogDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	stmt := `CREATE TABLE webhook_events (
		id TEXT PRIMARY KEY,
		processor TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		company_id TEXT,
		processed INTEGER NOT NULL DEFAULT 0,
		processed_at DATETIME,
		processing_error TEXT,
		created_at DATETIME
	)`
	require.NoError(t, db.Exec(stmt).Error)
	t.Cleanup(func() {
		db.Exec(`DROP TABLE webhook_events`)
	})
	return db
}

func newEventLog(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(NewRepository(openEventLogDB(t)), nil)
	require.NoError(t, err)
	return svc
}

func TestAppendStoresRawDelivery(t *testing.T) {
	svc := newEventLog(t)

	event, err := svc.Append(context.Background(), enums.ProcessorGHL, "AppointmentCreate", json.RawMessage(`{"id":"apt_1"}`))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, event.ID)
	assert.False(t, event.Processed, "new events start unprocessed")

	stored, err := svc.repo.FindByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, "AppointmentCreate", stored.EventType)
	assert.JSONEq(t, `{"id":"apt_1"}`, string(stored.Payload))
}

func TestAppendDefaultsEmptyInput(t *testing.T) {
	svc := newEventLog(t)

	event, err := svc.Append(context.Background(), enums.ProcessorStripe, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "unknown", event.EventType)
	assert.JSONEq(t, `{}`, string(event.Payload))
}

func TestAppendWrapsNonJSONBody(t *testing.T) {
	svc := newEventLog(t)

	event, err := svc.Append(context.Background(), enums.ProcessorGHL, "AppointmentCreate", json.RawMessage(`{not json`))
	require.NoError(t, err)
	require.True(t, json.Valid(event.Payload), "stored payload must satisfy the jsonb column")

	var wrapped map[string]string
	require.NoError(t, json.Unmarshal(event.Payload, &wrapped))
	assert.Equal(t, `{not json`, wrapped["raw"], "original bytes must stay diagnosable")
}

func TestMarkProcessedRecordsTenantAndError(t *testing.T) {
	svc := newEventLog(t)

	event, err := svc.Append(context.Background(), enums.ProcessorGHL, "AppointmentCreate", json.RawMessage(`{}`))
	require.NoError(t, err)

	companyID := uuid.New()
	require.NoError(t, svc.MarkProcessed(context.Background(), event.ID, &companyID, errors.New("handler blew up")))

	stored, err := svc.repo.FindByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed)
	assert.NotNil(t, stored.ProcessedAt)
	require.NotNil(t, stored.CompanyID)
	assert.Equal(t, companyID, *stored.CompanyID)
	require.NotNil(t, stored.ProcessingError)
	assert.Equal(t, "handler blew up", *stored.ProcessingError)
}

func TestMarkProcessedOnlyAppliesOnce(t *testing.T) {
	svc := newEventLog(t)

	event, err := svc.Append(context.Background(), enums.ProcessorGHL, "AppointmentCreate", json.RawMessage(`{}`))
	require.NoError(t, err)

	firstCompany := uuid.New()
	require.NoError(t, svc.MarkProcessed(context.Background(), event.ID, &firstCompany, nil))
	secondCompany := uuid.New()
	require.NoError(t, svc.MarkProcessed(context.Background(), event.ID, &secondCompany, errors.New("late failure")))

	stored, err := svc.repo.FindByID(context.Background(), event.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CompanyID)
	assert.Equal(t, firstCompany, *stored.CompanyID, "replay must not overwrite the tenant")
	assert.Nil(t, stored.ProcessingError, "replay must not overwrite the outcome")
}

func TestListUnprocessedReturnsOldestFirst(t *testing.T) {
	svc := newEventLog(t)

	first, err := svc.Append(context.Background(), enums.ProcessorGHL, "first", json.RawMessage(`{}`))
	require.NoError(t, err)
	second, err := svc.Append(context.Background(), enums.ProcessorGHL, "second", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, svc.MarkProcessed(context.Background(), first.ID, nil, nil))

	rows, err := svc.repo.ListUnprocessed(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, second.ID, rows[0].ID)
}
