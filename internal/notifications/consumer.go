package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/closetrack-backend/pkg/enums"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/closetrack-backend/pkg/outbox/payloads"
)

const notificationConsumer = "reconciliation-notifications"

// Consumer watches domain events and turns them into notifications for the
// configured sender.
type Consumer struct {
	sender       Sender
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the notification consumer.
func NewConsumer(sender Sender, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if sender == nil {
		return nil, fmt.Errorf("notification sender required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		sender:       sender,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !wantsEvent(eventType) {
		c.logg.Info(logCtx, "skipping event without a notification")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, notificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notification, err := buildNotification(eventType, envelope.Data)
	if err != nil {
		// Retrying cannot repair a malformed payload; keep the processed mark.
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}

	if err := c.sender.Send(ctx, *notification); err != nil {
		// Delivery is best-effort; the sender owns its own retries.
		c.logg.Error(logCtx, "notification delivery failed", err)
		return processResult{ack: true}
	}
	c.logg.Info(logCtx, "notification delivered")
	return processResult{ack: true}
}

func wantsEvent(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventPCNSubmitted, enums.EventSaleUnmatched, enums.EventCommissionCreated:
		return true
	default:
		return false
	}
}

func buildNotification(eventType enums.OutboxEventType, data json.RawMessage) (*Notification, error) {
	switch eventType {
	case enums.EventPCNSubmitted:
		var payload payloads.PCNSubmittedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		message := fmt.Sprintf("Post-call note recorded with outcome %s.", payload.Outcome)
		if payload.CashCollected != nil {
			message = fmt.Sprintf("Post-call note recorded with outcome %s, cash collected %s.",
				payload.Outcome, payload.CashCollected.StringFixed(2))
		}
		return &Notification{
			CompanyID: payload.CompanyID,
			Kind:      KindPCNSubmitted,
			Title:     "Post-call note submitted",
			Message:   message,
			Link:      fmt.Sprintf("/appointments/%s", payload.AppointmentID),
		}, nil
	case enums.EventSaleUnmatched:
		var payload payloads.SaleUnmatchedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		message := fmt.Sprintf("A payment of %s could not be matched automatically and needs review.",
			payload.Amount.StringFixed(2))
		if payload.Reason != "" {
			message = fmt.Sprintf("A payment of %s needs review: %s.",
				payload.Amount.StringFixed(2), payload.Reason)
		}
		return &Notification{
			CompanyID: payload.CompanyID,
			Kind:      KindPaymentReview,
			Title:     "Payment needs manual review",
			Message:   message,
			Link:      "/payments/unmatched",
		}, nil
	case enums.EventCommissionCreated:
		var payload payloads.CommissionCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		userID := payload.UserID
		return &Notification{
			CompanyID: payload.CompanyID,
			UserID:    &userID,
			Kind:      KindCommissionCreated,
			Title:     "Commission created",
			Message: fmt.Sprintf("A commission of %s was created at rate %s.",
				payload.TotalAmount.StringFixed(2), payload.Rate.String()),
			Link: fmt.Sprintf("/commissions/%s", payload.CommissionID),
		}, nil
	default:
		return nil, fmt.Errorf("no notification for event type %s", eventType)
	}
}
