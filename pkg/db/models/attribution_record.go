package models

import (
	"time"

	"github.com/google/uuid"
)

// AttributionRecord is a per-contact attribution row synced out-of-band from
// an external tracker (hyros). Read-only inside the pipeline.
type AttributionRecord struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID     uuid.UUID `gorm:"column:company_id;type:uuid;not null;uniqueIndex:ux_attribution_records_company_contact,priority:1"`
	ContactID     uuid.UUID `gorm:"column:contact_id;type:uuid;not null;uniqueIndex:ux_attribution_records_company_contact,priority:2"`
	TrafficSource string    `gorm:"column:traffic_source;not null"`
	LeadSource    string    `gorm:"column:lead_source"`
	SyncedAt      time.Time `gorm:"column:synced_at;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
