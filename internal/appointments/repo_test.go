package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

func openAppointmentsDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	stmts := []string{
		`CREATE TABLE appointments (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			external_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'scheduled',
			scheduled_at DATETIME NOT NULL,
			contact_id TEXT,
			calendar_id TEXT,
			closer_id TEXT,
			setter_id TEXT,
			traffic_source TEXT,
			lead_source TEXT,
			attribution_confidence REAL,
			cash_collected NUMERIC,
			pcn_outcome TEXT,
			pcn_notes TEXT,
			pcn_qualification_status TEXT,
			pcn_objection TEXT,
			pcn_nurture_type TEXT,
			pcn_follow_up_scheduled INTEGER NOT NULL DEFAULT 0,
			pcn_follow_up_date DATETIME,
			pcn_cancellation_reason TEXT,
			pcn_offer_made INTEGER,
			pcn_no_show_communicative INTEGER,
			pcn_disqualification_reason TEXT,
			pcn_submitted INTEGER NOT NULL DEFAULT 0,
			pcn_submitted_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME,
			UNIQUE (company_id, external_id)
		)`,
		`CREATE TABLE contacts (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			external_id TEXT,
			name TEXT,
			email TEXT,
			phone TEXT,
			custom_fields TEXT,
			tags TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE users (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			name TEXT,
			email TEXT,
			custom_commission_rate NUMERIC,
			commission_role_id TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
	}
	for _, stmt := range stmts {
		require.NoError(t, db.Exec(stmt).Error)
	}
	t.Cleanup(func() {
		db.Exec(`DROP TABLE appointments`)
		db.Exec(`DROP TABLE contacts`)
		db.Exec(`DROP TABLE users`)
	})
	return db
}

type candidateFixture struct {
	repo      *Repository
	db        *gorm.DB
	companyID uuid.UUID
}

func newCandidateFixture(t *testing.T) *candidateFixture {
	t.Helper()
	db := openAppointmentsDB(t)
	return &candidateFixture{
		repo:      NewRepository(db),
		db:        db,
		companyID: uuid.New(),
	}
}

func (f *candidateFixture) seedContact(t *testing.T, email, phone, name string) uuid.UUID {
	t.Helper()
	contact := models.Contact{
		ID:        uuid.New(),
		CompanyID: f.companyID,
		Email:     email,
		Phone:     phone,
		Name:      name,
	}
	require.NoError(t, f.db.Create(&contact).Error)
	return contact.ID
}

func (f *candidateFixture) seedCloser(t *testing.T, email string) uuid.UUID {
	t.Helper()
	user := models.User{
		ID:        uuid.New(),
		CompanyID: f.companyID,
		Email:     email,
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user.ID
}

func (f *candidateFixture) seedAppointment(t *testing.T, externalID string, contactID uuid.UUID, closerID *uuid.UUID, scheduledAt time.Time) uuid.UUID {
	t.Helper()
	appointment := models.Appointment{
		ID:          uuid.New(),
		CompanyID:   f.companyID,
		ExternalID:  externalID,
		Status:      enums.AppointmentStatusScheduled,
		ScheduledAt: scheduledAt,
		ContactID:   &contactID,
		CloserID:    closerID,
	}
	require.NoError(t, f.db.Create(&appointment).Error)
	return appointment.ID
}

func TestFindMatchCandidatesMatchesNormalizedSignals(t *testing.T) {
	f := newCandidateFixture(t)
	now := time.Now().UTC()

	emailContact := f.seedContact(t, "Jane.Doe@Acme.Test", "", "Jane Doe")
	phoneContact := f.seedContact(t, "", "(555) 123-4567", "Someone Else")
	missContact := f.seedContact(t, "other@acme.test", "999", "Other Person")

	closerID := f.seedCloser(t, "closer@acme.test")
	emailAppt := f.seedAppointment(t, "apt_email", emailContact, &closerID, now.Add(-time.Hour))
	phoneAppt := f.seedAppointment(t, "apt_phone", phoneContact, nil, now.Add(-2*time.Hour))
	f.seedAppointment(t, "apt_miss", missContact, nil, now.Add(-time.Hour))

	rows, err := f.repo.FindMatchCandidates(context.Background(), f.companyID, MatchSignals{
		Email:       "jane.doe@acme.test",
		Phone:       "555.123.4567",
		CloserEmail: "CLOSER@acme.test",
	}, 30*24*time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[uuid.UUID]CandidateRow{}
	for _, row := range rows {
		byID[row.Appointment.ID] = row
	}
	email, ok := byID[emailAppt]
	require.True(t, ok, "email appointment should be a candidate")
	assert.True(t, email.EmailMatch)
	assert.True(t, email.CloserMatch, "closer email should match case-insensitively")

	phone, ok := byID[phoneAppt]
	require.True(t, ok, "phone appointment should be a candidate")
	assert.True(t, phone.PhoneMatch)
	assert.False(t, phone.EmailMatch)
	assert.False(t, phone.CloserMatch)
}

func TestFindMatchCandidatesScopesByCompanyAndLookback(t *testing.T) {
	f := newCandidateFixture(t)
	now := time.Now().UTC()

	contactID := f.seedContact(t, "jane@acme.test", "", "Jane")
	f.seedAppointment(t, "apt_old", contactID, nil, now.Add(-100*24*time.Hour))

	otherCompany := models.Contact{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		Email:     "jane@acme.test",
	}
	require.NoError(t, f.db.Create(&otherCompany).Error)
	foreign := models.Appointment{
		ID:          uuid.New(),
		CompanyID:   otherCompany.CompanyID,
		ExternalID:  "apt_foreign",
		Status:      enums.AppointmentStatusScheduled,
		ScheduledAt: now.Add(-time.Hour),
		ContactID:   &otherCompany.ID,
	}
	require.NoError(t, f.db.Create(&foreign).Error)

	rows, err := f.repo.FindMatchCandidates(context.Background(), f.companyID, MatchSignals{
		Email: "jane@acme.test",
	}, 30*24*time.Hour, 10)
	require.NoError(t, err)
	assert.Empty(t, rows, "stale and cross-tenant rows must not match")
}

func TestFindMatchCandidatesNoSignalsIsNoop(t *testing.T) {
	f := newCandidateFixture(t)
	rows, err := f.repo.FindMatchCandidates(context.Background(), f.companyID, MatchSignals{
		Phone: "--",
	}, time.Hour, 10)
	require.NoError(t, err)
	assert.Nil(t, rows, "empty signals must short-circuit")
}

func TestApplyStatusRespectsTerminalStates(t *testing.T) {
	f := newCandidateFixture(t)
	contactID := f.seedContact(t, "jane@acme.test", "", "Jane")
	id := f.seedAppointment(t, "apt_1", contactID, nil, time.Now().UTC())

	changed, err := f.repo.ApplyStatus(context.Background(), id, enums.AppointmentStatusSigned)
	require.NoError(t, err)
	assert.True(t, changed, "first transition should apply")

	changed, err = f.repo.ApplyStatus(context.Background(), id, enums.AppointmentStatusNoShow)
	require.NoError(t, err)
	assert.False(t, changed, "signed is terminal, later transitions must not apply")

	stored, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, enums.AppointmentStatusSigned, stored.Status)
}

func TestUpsertRefreshesWithoutTouchingStatus(t *testing.T) {
	f := newCandidateFixture(t)
	contactID := f.seedContact(t, "jane@acme.test", "", "Jane")
	first := time.Now().UTC().Truncate(time.Second)

	created, err := f.repo.Upsert(context.Background(), &models.Appointment{
		ID:          uuid.New(),
		CompanyID:   f.companyID,
		ExternalID:  "apt_1",
		Status:      enums.AppointmentStatusScheduled,
		ScheduledAt: first,
		ContactID:   &contactID,
	})
	require.NoError(t, err)

	_, err = f.repo.ApplyStatus(context.Background(), created.ID, enums.AppointmentStatusShowed)
	require.NoError(t, err)

	rescheduled := first.Add(24 * time.Hour)
	updated, err := f.repo.Upsert(context.Background(), &models.Appointment{
		ID:          uuid.New(),
		CompanyID:   f.companyID,
		ExternalID:  "apt_1",
		Status:      enums.AppointmentStatusScheduled,
		ScheduledAt: rescheduled,
		ContactID:   &contactID,
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID, "replayed upsert must not create a new row")
	assert.True(t, updated.ScheduledAt.Equal(rescheduled))
	assert.Equal(t, enums.AppointmentStatusShowed, updated.Status, "upsert must not touch status")
}

func TestUpsertKeepsReferencesOnPartialRedelivery(t *testing.T) {
	f := newCandidateFixture(t)
	contactID := f.seedContact(t, "jane@acme.test", "", "Jane")
	closerID := f.seedCloser(t, "closer@acme.test")
	first := time.Now().UTC().Truncate(time.Second)

	created, err := f.repo.Upsert(context.Background(), &models.Appointment{
		ID:          uuid.New(),
		CompanyID:   f.companyID,
		ExternalID:  "apt_1",
		Status:      enums.AppointmentStatusScheduled,
		ScheduledAt: first,
		ContactID:   &contactID,
		CloserID:    &closerID,
	})
	require.NoError(t, err)

	rescheduled := first.Add(2 * time.Hour)
	updated, err := f.repo.Upsert(context.Background(), &models.Appointment{
		ID:          uuid.New(),
		CompanyID:   f.companyID,
		ExternalID:  "apt_1",
		Status:      enums.AppointmentStatusScheduled,
		ScheduledAt: rescheduled,
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.True(t, updated.ScheduledAt.Equal(rescheduled))
	require.NotNil(t, updated.ContactID, "partial redelivery must not erase the contact reference")
	assert.Equal(t, contactID, *updated.ContactID)
	require.NotNil(t, updated.CloserID, "partial redelivery must not erase the closer reference")
	assert.Equal(t, closerID, *updated.CloserID)
}
