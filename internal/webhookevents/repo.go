package webhookevents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
)

// Repository persists the append-only inbound event log.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an event log repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new event log row.
func (r *Repository) Create(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

// FindByID loads a single event row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkProcessed flips the processed flag exactly once, recording the tenant
// (when resolved) and any handler error. Already-processed rows are untouched.
func (r *Repository) MarkProcessed(ctx context.Context, id uuid.UUID, companyID *uuid.UUID, processingError *string) error {
	updates := map[string]any{
		"processed":        true,
		"processed_at":     time.Now(),
		"processing_error": processingError,
	}
	if companyID != nil {
		updates["company_id"] = *companyID
	}
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ? AND processed = false", id).
		Updates(updates).Error
}

// ListUnprocessed returns the oldest unprocessed events, for diagnostics.
func (r *Repository) ListUnprocessed(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	var rows []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("processed = false").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
