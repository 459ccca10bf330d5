package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// Sale is an incoming payment. ExternalPaymentID is the global idempotency
// key: replayed processor notifications collapse onto one row.
type Sale struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID         uuid.UUID       `gorm:"column:company_id;type:uuid;not null;index"`
	Processor         enums.Processor `gorm:"column:processor;type:processor_enum;not null"`
	ExternalPaymentID string          `gorm:"column:external_payment_id;not null;uniqueIndex:ux_sales_external_payment"`
	Amount            decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	PaidAt            time.Time       `gorm:"column:paid_at;not null"`

	ContactEmail string `gorm:"column:contact_email"`
	ContactPhone string `gorm:"column:contact_phone"`
	ContactName  string `gorm:"column:contact_name"`
	CloserEmail  string `gorm:"column:closer_email"`

	PaymentContext enums.PaymentContext `gorm:"column:payment_context;type:payment_context_enum;not null;default:'full'"`

	// AppointmentID, once set, is only reassigned by an explicit manual override.
	AppointmentID   *uuid.UUID       `gorm:"column:appointment_id;type:uuid;index"`
	MatchedBy       *enums.MatchedBy `gorm:"column:matched_by;type:matched_by_enum"`
	MatchConfidence *float64         `gorm:"column:match_confidence"`
	MatchedByUserID *uuid.UUID       `gorm:"column:matched_by_user_id;type:uuid"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
