package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics tracks the inbound delivery pipeline per processor.
type WebhookMetrics struct {
	received   *prometheus.CounterVec
	processed  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewWebhookMetrics registers the webhook pipeline metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_received_total",
		Help: "Webhook deliveries accepted for processing.",
	}, []string{"processor"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_processed_total",
		Help: "Webhook deliveries fully processed.",
	}, []string{"processor", "event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_failed_total",
		Help: "Webhook deliveries that errored during processing.",
	}, []string{"processor"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_duplicate_total",
		Help: "Webhook deliveries skipped as replays.",
	}, []string{"processor"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_processing_seconds",
		Help:    "Time spent processing a webhook delivery.",
		Buckets: prometheus.DefBuckets,
	}, []string{"processor"})
	reg.MustRegister(received, processed, failed, duplicates, duration)
	return &WebhookMetrics{
		received:   received,
		processed:  processed,
		failed:     failed,
		duplicates: duplicates,
		duration:   duration,
	}
}

// IncReceived counts an accepted delivery.
func (m *WebhookMetrics) IncReceived(processor string) {
	if m == nil || m.received == nil {
		return
	}
	m.received.WithLabelValues(normalizeLabel(processor)).Inc()
}

// IncProcessed counts a fully processed delivery.
func (m *WebhookMetrics) IncProcessed(processor, eventType string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(processor), normalizeLabel(eventType)).Inc()
}

// IncFailed counts a delivery whose handler errored.
func (m *WebhookMetrics) IncFailed(processor string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(processor)).Inc()
}

// IncDuplicate counts a replayed delivery.
func (m *WebhookMetrics) IncDuplicate(processor string) {
	if m == nil || m.duplicates == nil {
		return
	}
	m.duplicates.WithLabelValues(normalizeLabel(processor)).Inc()
}

// ObserveDuration records end-to-end processing time for a delivery.
func (m *WebhookMetrics) ObserveDuration(processor string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(processor)).Observe(duration.Seconds())
}
