package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// Company is the tenant. Every other row hangs off a company id and is never
// shared across tenants.
type Company struct {
	ID                    uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                  string                    `gorm:"column:name;not null"`
	ExternalLocationID    string                    `gorm:"column:external_location_id;uniqueIndex"`
	AttributionStrategy   enums.AttributionStrategy `gorm:"column:attribution_strategy;type:attribution_strategy_enum;not null;default:'none'"`
	AttributionFieldPath  string                    `gorm:"column:attribution_field_path"`
	WebhookSecret         string                    `gorm:"column:webhook_secret"`
	SurveySecret          string                    `gorm:"column:survey_secret"`
	DefaultCommissionRate *decimal.Decimal          `gorm:"column:default_commission_rate;type:numeric(5,4)"`
	MatchAcceptThreshold  *float64                  `gorm:"column:match_accept_threshold"`
	// PCNAutoSubmitSources lists sources ("survey", "ai") the tenant allows to
	// finalize a PCN without human review.
	PCNAutoSubmitSources pq.StringArray `gorm:"column:pcn_auto_submit_sources;type:text[];default:ARRAY[]::text[]"`
	// EncryptedCredentials holds sealed third-party credentials. Only
	// pkg/security can open it, and only with the configured key.
	EncryptedCredentials []byte    `gorm:"column:encrypted_credentials;type:bytea"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
