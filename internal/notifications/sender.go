package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/angelmondragon/closetrack-backend/pkg/config"
	"github.com/angelmondragon/closetrack-backend/pkg/logger"
)

const defaultDeliveryTimeout = 10 * time.Second

// WebhookSender delivers notifications with a JSON POST to the downstream
// endpoint. Non-2xx responses are errors; retry policy belongs to the caller.
type WebhookSender struct {
	url    string
	client *http.Client
}

func NewWebhookSender(cfg config.NotificationsConfig) (*WebhookSender, error) {
	if cfg.DeliveryURL == "" {
		return nil, fmt.Errorf("delivery url is required")
	}
	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &WebhookSender{
		url:    cfg.DeliveryURL,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (s *WebhookSender) Send(ctx context.Context, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("delivery endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes notifications to the log. It keeps the worker runnable in
// environments without a delivery endpoint.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, notification Notification) error {
	if s.logg == nil {
		return nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"company_id": notification.CompanyID.String(),
		"kind":       string(notification.Kind),
		"title":      notification.Title,
	})
	s.logg.Info(ctx, "notification delivered to log")
	return nil
}
