package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// PCNChangelogEntry is the append-only audit trail of PCN actions. Rows are
// never mutated after insert.
type PCNChangelogEntry struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID     uuid.UUID             `gorm:"column:company_id;type:uuid;not null;index"`
	AppointmentID uuid.UUID             `gorm:"column:appointment_id;type:uuid;not null;index"`
	Action        enums.ChangelogAction `gorm:"column:action;type:changelog_action_enum;not null"`
	Source        enums.PCNSource       `gorm:"column:source;type:pcn_source_enum;not null"`
	Actor         string                `gorm:"column:actor;not null"`
	Notes         string                `gorm:"column:notes"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}
