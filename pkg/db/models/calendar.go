package models

import (
	"time"

	"github.com/google/uuid"
)

// Calendar is synced from the CRM and read-mostly.
type Calendar struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID  uuid.UUID `gorm:"column:company_id;type:uuid;not null;uniqueIndex:ux_calendars_company_external,priority:1"`
	ExternalID string    `gorm:"column:external_id;not null;uniqueIndex:ux_calendars_company_external,priority:2"`
	Name       string    `gorm:"column:name;not null"`
	// TrafficSource is the manually-assigned source; it always wins over
	// anything extracted from the calendar name.
	TrafficSource   string     `gorm:"column:traffic_source"`
	DefaultCloserID *uuid.UUID `gorm:"column:default_closer_id;type:uuid"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
