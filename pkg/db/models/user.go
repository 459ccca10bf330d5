package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is a sales rep (closer or setter) inside a company.
type User struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID        uuid.UUID  `gorm:"column:company_id;type:uuid;not null;index"`
	Name             string     `gorm:"column:name;not null"`
	Email            string     `gorm:"column:email;not null"`
	// CustomCommissionRate overrides the role default when set.
	CustomCommissionRate *decimal.Decimal `gorm:"column:custom_commission_rate;type:numeric(5,4)"`
	CommissionRoleID     *uuid.UUID       `gorm:"column:commission_role_id;type:uuid"`
	CreatedAt            time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
