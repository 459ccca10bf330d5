package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// PCNDraft stores a machine-produced candidate submission awaiting review.
// The appointment's status is untouched until a reviewer decides.
type PCNDraft struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID     uuid.UUID         `gorm:"column:company_id;type:uuid;not null;index"`
	AppointmentID uuid.UUID         `gorm:"column:appointment_id;type:uuid;not null;index"`
	Source        enums.PCNSource   `gorm:"column:source;type:pcn_source_enum;not null"`
	Payload       json.RawMessage   `gorm:"column:payload;type:jsonb;not null"`
	Status        enums.DraftStatus `gorm:"column:status;type:draft_status_enum;not null;default:'pending'"`
	Reviewer      string            `gorm:"column:reviewer"`
	ReviewReason  string            `gorm:"column:review_reason"`
	ReviewedAt    *time.Time        `gorm:"column:reviewed_at"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
