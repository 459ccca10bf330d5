package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// UnmatchedPayment queues a sale the matcher could not confidently place for
// human review. Candidates may be empty; the matcher never guesses.
type UnmatchedPayment struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID uuid.UUID `gorm:"column:company_id;type:uuid;not null;index"`
	SaleID    uuid.UUID `gorm:"column:sale_id;type:uuid;not null;uniqueIndex:ux_unmatched_payments_sale"`
	// Candidates is the scored suggestion list computed at ingest time.
	Candidates   json.RawMessage    `gorm:"column:candidates;type:jsonb"`
	ReviewStatus enums.ReviewStatus `gorm:"column:review_status;type:review_status_enum;not null;default:'pending'"`
	ResolvedByID *uuid.UUID         `gorm:"column:resolved_by_id;type:uuid"`
	ResolvedAt   *time.Time         `gorm:"column:resolved_at"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
