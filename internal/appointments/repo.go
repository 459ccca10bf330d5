package appointments

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// candidateScanCap bounds how many recent appointments the matcher inspects.
const candidateScanCap = 500

// Repository exposes appointment persistence operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Upsert creates or refreshes the appointment keyed on
// (company_id, external_id). Status and PCN fields are never touched here:
// status moves through ApplyStatus and PCN fields through the orchestrator,
// so a replayed create cannot regress either. Reference columns coalesce so a
// partial or out-of-order redelivery cannot null out stored links.
func (r *Repository) Upsert(ctx context.Context, appointment *models.Appointment) (*models.Appointment, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "company_id"}, {Name: "external_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"scheduled_at": gorm.Expr("excluded.scheduled_at"),
				"contact_id":   gorm.Expr("COALESCE(excluded.contact_id, appointments.contact_id)"),
				"calendar_id":  gorm.Expr("COALESCE(excluded.calendar_id, appointments.calendar_id)"),
				"closer_id":    gorm.Expr("COALESCE(excluded.closer_id, appointments.closer_id)"),
				"setter_id":    gorm.Expr("COALESCE(excluded.setter_id, appointments.setter_id)"),
				"updated_at":   gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(appointment).Error
	if err != nil {
		return nil, err
	}
	return r.FindByExternalID(ctx, appointment.CompanyID, appointment.ExternalID)
}

// FindByID loads an appointment by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := r.db.WithContext(ctx).First(&appointment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &appointment, nil
}

// FindByIDForCompany loads an appointment enforcing tenant ownership.
func (r *Repository) FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*models.Appointment, error) {
	var appointment models.Appointment
	err := r.db.WithContext(ctx).
		First(&appointment, "id = ? AND company_id = ?", id, companyID).Error
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

// FindByExternalID loads an appointment by its CRM id within a tenant.
func (r *Repository) FindByExternalID(ctx context.Context, companyID uuid.UUID, externalID string) (*models.Appointment, error) {
	var appointment models.Appointment
	err := r.db.WithContext(ctx).
		First(&appointment, "company_id = ? AND external_id = ?", companyID, externalID).Error
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

// ApplyStatus updates the status only when the current status is not
// terminal, making out-of-order webhook replays safe.
func (r *Repository) ApplyStatus(ctx context.Context, id uuid.UUID, status enums.AppointmentStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND status NOT IN ?", id, []enums.AppointmentStatus{
			enums.AppointmentStatusCancelled,
			enums.AppointmentStatusSigned,
		}).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetAttribution stores the resolver's output on the appointment.
func (r *Repository) SetAttribution(ctx context.Context, id uuid.UUID, trafficSource, leadSource string, confidence float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"traffic_source":         trafficSource,
			"lead_source":            leadSource,
			"attribution_confidence": confidence,
		}).Error
}

// Save persists a fully-loaded appointment row.
func (r *Repository) Save(ctx context.Context, appointment *models.Appointment) error {
	return r.db.WithContext(ctx).Save(appointment).Error
}

// ApplyPCNFields persists the post-call note detail columns from the given
// row. Status is deliberately excluded; it moves through ApplyStatus.
func (r *Repository) ApplyPCNFields(ctx context.Context, appointment *models.Appointment) error {
	return r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ?", appointment.ID).
		Updates(map[string]any{
			"pcn_outcome":                 appointment.PCNOutcome,
			"pcn_notes":                   appointment.PCNNotes,
			"pcn_qualification_status":    appointment.PCNQualificationStatus,
			"pcn_objection":               appointment.PCNObjection,
			"pcn_nurture_type":            appointment.PCNNurtureType,
			"pcn_follow_up_scheduled":     appointment.PCNFollowUpScheduled,
			"pcn_follow_up_date":          appointment.PCNFollowUpDate,
			"pcn_cancellation_reason":     appointment.PCNCancellationReason,
			"pcn_offer_made":              appointment.PCNOfferMade,
			"pcn_no_show_communicative":   appointment.PCNNoShowCommunicative,
			"pcn_disqualification_reason": appointment.PCNDisqualificationNote,
			"cash_collected":              appointment.CashCollected,
			"pcn_submitted":               appointment.PCNSubmitted,
			"pcn_submitted_at":            appointment.PCNSubmittedAt,
			"updated_at":                  time.Now(),
		}).Error
}

// MatchSignals are the contact identifiers used to search candidates.
type MatchSignals struct {
	Email       string
	Phone       string
	Name        string
	CloserEmail string
}

// Empty reports whether no usable signal is present.
func (s MatchSignals) Empty() bool {
	return strings.TrimSpace(s.Email) == "" &&
		digitsOnly(s.Phone) == "" &&
		strings.TrimSpace(s.Name) == ""
}

// CandidateRow pairs an appointment with which signals matched it.
type CandidateRow struct {
	Appointment models.Appointment
	EmailMatch  bool
	PhoneMatch  bool
	NameMatch   bool
	CloserMatch bool
}

type joinedRow struct {
	models.Appointment
	JoinedContactEmail string `gorm:"column:joined_contact_email"`
	JoinedContactPhone string `gorm:"column:joined_contact_phone"`
	JoinedContactName  string `gorm:"column:joined_contact_name"`
	JoinedCloserEmail  string `gorm:"column:joined_closer_email"`
}

// FindMatchCandidates returns appointments whose contact matches any of the
// provided signals, most recently scheduled first. Phone comparison is
// digits-only; email and name are case-insensitive exact. Signal comparison
// happens in Go over a bounded recent window so the same logic runs on every
// backing database.
func (r *Repository) FindMatchCandidates(ctx context.Context, companyID uuid.UUID, signals MatchSignals, lookback time.Duration, limit int) ([]CandidateRow, error) {
	if signals.Empty() {
		return nil, nil
	}
	email := strings.ToLower(strings.TrimSpace(signals.Email))
	phone := digitsOnly(signals.Phone)
	name := strings.ToLower(strings.TrimSpace(signals.Name))
	closerEmail := strings.ToLower(strings.TrimSpace(signals.CloserEmail))

	var rows []joinedRow
	err := r.db.WithContext(ctx).
		Table("appointments").
		Select("appointments.*, " +
			"contacts.email AS joined_contact_email, " +
			"contacts.phone AS joined_contact_phone, " +
			"contacts.name AS joined_contact_name, " +
			"users.email AS joined_closer_email").
		Joins("JOIN contacts ON contacts.id = appointments.contact_id").
		Joins("LEFT JOIN users ON users.id = appointments.closer_id").
		Where("appointments.company_id = ?", companyID).
		Where("appointments.scheduled_at >= ?", time.Now().Add(-lookback)).
		Order("appointments.scheduled_at DESC").
		Limit(candidateScanCap).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]CandidateRow, 0, limit)
	for _, row := range rows {
		candidate := CandidateRow{
			Appointment: row.Appointment,
			EmailMatch:  email != "" && strings.ToLower(strings.TrimSpace(row.JoinedContactEmail)) == email,
			PhoneMatch:  phone != "" && digitsOnly(row.JoinedContactPhone) == phone,
			NameMatch:   name != "" && strings.ToLower(strings.TrimSpace(row.JoinedContactName)) == name,
		}
		if !candidate.EmailMatch && !candidate.PhoneMatch && !candidate.NameMatch {
			continue
		}
		candidate.CloserMatch = closerEmail != "" &&
			strings.ToLower(strings.TrimSpace(row.JoinedCloserEmail)) == closerEmail
		out = append(out, candidate)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
