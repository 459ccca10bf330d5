package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// Commission tracks a rep's cut of a sale through the partial-release
// lifecycle. ReleasedAmount never exceeds TotalAmount and never decreases.
type Commission struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID      uuid.UUID           `gorm:"column:company_id;type:uuid;not null;index"`
	SaleID         uuid.UUID           `gorm:"column:sale_id;type:uuid;not null;uniqueIndex:ux_commissions_sale"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Rate           decimal.Decimal     `gorm:"column:rate;type:numeric(5,4);not null"`
	TotalAmount    decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ReleasedAmount decimal.Decimal     `gorm:"column:released_amount;type:numeric(12,2);not null;default:0"`
	ReleaseStatus  enums.ReleaseStatus `gorm:"column:release_status;type:release_status_enum;not null;default:'pending'"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
