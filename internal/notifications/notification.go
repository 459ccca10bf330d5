package notifications

import (
	"context"

	"github.com/google/uuid"
)

// Kind buckets notifications for routing on the delivery side.
type Kind string

const (
	KindPCNSubmitted      Kind = "pcn_submitted"
	KindPaymentReview     Kind = "payment_review"
	KindCommissionCreated Kind = "commission_created"
)

// Notification is the delivery-agnostic message handed to the sender.
type Notification struct {
	CompanyID uuid.UUID  `json:"companyId"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	Kind      Kind       `json:"kind"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Link      string     `json:"link,omitempty"`
}

// Sender delivers notifications through an external channel (email, chat,
// in-app). Delivery failures are the sender's problem to retry; the consumer
// logs and moves on.
type Sender interface {
	Send(ctx context.Context, notification Notification) error
}
