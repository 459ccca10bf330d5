package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Contact mirrors a CRM contact. Webhooks create and update these rows; any
// identifying field may legitimately be empty.
type Contact struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID  uuid.UUID `gorm:"column:company_id;type:uuid;not null;uniqueIndex:ux_contacts_company_external,priority:1"`
	ExternalID string    `gorm:"column:external_id;not null;uniqueIndex:ux_contacts_company_external,priority:2"`
	Name       string    `gorm:"column:name"`
	Email      string    `gorm:"column:email;index"`
	Phone      string    `gorm:"column:phone"`
	// CustomFields is the tenant-defined field bag, stored as delivered.
	CustomFields json.RawMessage `gorm:"column:custom_fields;type:jsonb"`
	Tags         pq.StringArray  `gorm:"column:tags;type:text[];default:ARRAY[]::text[]"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
