package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// WebhookEvent is the append-only event log. Every inbound delivery lands
// here before any interpretation, so parse failures stay diagnosable.
type WebhookEvent struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Processor enums.Processor `gorm:"column:processor;type:processor_enum;not null"`
	EventType string          `gorm:"column:event_type;not null;index"`
	Payload   json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	// CompanyID is filled in once tenant resolution succeeds.
	CompanyID *uuid.UUID `gorm:"column:company_id;type:uuid;index"`
	// Processed transitions false -> true exactly once.
	Processed       bool       `gorm:"column:processed;not null;default:false"`
	ProcessedAt     *time.Time `gorm:"column:processed_at"`
	ProcessingError *string    `gorm:"column:processing_error"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}
