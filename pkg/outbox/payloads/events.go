package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// PCNSubmittedEvent is emitted once per appointment when its post-call note lands.
type PCNSubmittedEvent struct {
	AppointmentID uuid.UUID         `json:"appointment_id"`
	CompanyID     uuid.UUID         `json:"company_id"`
	Outcome       enums.CallOutcome `json:"outcome"`
	Source        enums.PCNSource   `json:"source"`
	CashCollected *decimal.Decimal  `json:"cash_collected,omitempty"`
	SubmittedAt   time.Time         `json:"submitted_at"`
}

// AppointmentStatusChangedEvent announces a status transition.
type AppointmentStatusChangedEvent struct {
	AppointmentID uuid.UUID               `json:"appointment_id"`
	CompanyID     uuid.UUID               `json:"company_id"`
	From          enums.AppointmentStatus `json:"from"`
	To            enums.AppointmentStatus `json:"to"`
}

// SaleMatchedEvent is emitted when a payment is linked to an appointment.
type SaleMatchedEvent struct {
	SaleID        uuid.UUID       `json:"sale_id"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	CompanyID     uuid.UUID       `json:"company_id"`
	Amount        decimal.Decimal `json:"amount"`
	MatchedBy     enums.MatchedBy `json:"matched_by"`
	Confidence    *float64        `json:"confidence,omitempty"`
}

// SaleUnmatchedEvent flags a payment that needs manual review.
type SaleUnmatchedEvent struct {
	SaleID    uuid.UUID       `json:"sale_id"`
	CompanyID uuid.UUID       `json:"company_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
}

// CommissionCreatedEvent records a new commission obligation.
type CommissionCreatedEvent struct {
	CommissionID uuid.UUID       `json:"commission_id"`
	SaleID       uuid.UUID       `json:"sale_id"`
	CompanyID    uuid.UUID       `json:"company_id"`
	UserID       uuid.UUID       `json:"user_id"`
	Rate         decimal.Decimal `json:"rate"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// CommissionReleasedEvent announces released commission dollars.
type CommissionReleasedEvent struct {
	CommissionID   uuid.UUID           `json:"commission_id"`
	CompanyID      uuid.UUID           `json:"company_id"`
	UserID         uuid.UUID           `json:"user_id"`
	ReleasedAmount decimal.Decimal     `json:"released_amount"`
	ReleaseStatus  enums.ReleaseStatus `json:"release_status"`
}
