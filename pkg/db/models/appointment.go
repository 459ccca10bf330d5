package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// Appointment is the canonical booked call. The external id is the idempotent
// upsert key: webhook replays and out-of-order deliveries converge on one row.
type Appointment struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID   uuid.UUID               `gorm:"column:company_id;type:uuid;not null;uniqueIndex:ux_appointments_company_external,priority:1"`
	ExternalID  string                  `gorm:"column:external_id;not null;uniqueIndex:ux_appointments_company_external,priority:2"`
	Status      enums.AppointmentStatus `gorm:"column:status;type:appointment_status_enum;not null;default:'scheduled'"`
	ScheduledAt time.Time               `gorm:"column:scheduled_at;not null;index"`
	ContactID   *uuid.UUID              `gorm:"column:contact_id;type:uuid;index"`
	CalendarID  *uuid.UUID              `gorm:"column:calendar_id;type:uuid"`
	CloserID    *uuid.UUID              `gorm:"column:closer_id;type:uuid"`
	SetterID    *uuid.UUID              `gorm:"column:setter_id;type:uuid"`

	TrafficSource         string   `gorm:"column:traffic_source"`
	LeadSource            string   `gorm:"column:lead_source"`
	AttributionConfidence *float64 `gorm:"column:attribution_confidence"`

	CashCollected *decimal.Decimal `gorm:"column:cash_collected;type:numeric(12,2)"`

	// PCN detail fields, populated on submission.
	PCNOutcome             *enums.CallOutcome `gorm:"column:pcn_outcome;type:call_outcome_enum"`
	PCNNotes               string             `gorm:"column:pcn_notes"`
	PCNQualificationStatus string             `gorm:"column:pcn_qualification_status"`
	PCNObjection           string             `gorm:"column:pcn_objection"`
	PCNNurtureType         string             `gorm:"column:pcn_nurture_type"`
	PCNFollowUpScheduled   bool               `gorm:"column:pcn_follow_up_scheduled;not null;default:false"`
	PCNFollowUpDate        *time.Time         `gorm:"column:pcn_follow_up_date"`
	PCNCancellationReason  string             `gorm:"column:pcn_cancellation_reason"`
	// Nullable so "not asked" stays distinct from an explicit no.
	PCNOfferMade            *bool  `gorm:"column:pcn_offer_made"`
	PCNNoShowCommunicative  *bool  `gorm:"column:pcn_no_show_communicative"`
	PCNDisqualificationNote string `gorm:"column:pcn_disqualification_reason"`

	// PCNSubmitted only ever transitions false -> true.
	PCNSubmitted   bool       `gorm:"column:pcn_submitted;not null;default:false"`
	PCNSubmittedAt *time.Time `gorm:"column:pcn_submitted_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
