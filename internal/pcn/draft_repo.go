package pcn

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// DraftRepository persists machine-produced PCN candidates awaiting review.
type DraftRepository struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

func (r *DraftRepository) WithTx(tx *gorm.DB) *DraftRepository {
	return &DraftRepository{db: tx}
}

func (r *DraftRepository) Create(ctx context.Context, draft *models.PCNDraft) error {
	if draft.ID == uuid.Nil {
		draft.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(draft).Error
}

// FindPendingByAppointment returns the newest pending draft for an
// appointment, if any.
func (r *DraftRepository) FindPendingByAppointment(ctx context.Context, companyID, appointmentID uuid.UUID) (*models.PCNDraft, error) {
	var draft models.PCNDraft
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND appointment_id = ? AND status = ?",
			companyID, appointmentID, enums.DraftStatusPending).
		Order("created_at DESC").
		First(&draft).Error
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// ListPending returns a tenant's open drafts, oldest first.
func (r *DraftRepository) ListPending(ctx context.Context, companyID uuid.UUID, limit int) ([]models.PCNDraft, error) {
	var rows []models.PCNDraft
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND status = ?", companyID, enums.DraftStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// SetReviewed closes a pending draft. The status guard means only one
// reviewer decision lands; the loser observes false.
func (r *DraftRepository) SetReviewed(ctx context.Context, id uuid.UUID, status enums.DraftStatus, reviewer, reason string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.PCNDraft{}).
		Where("id = ? AND status = ?", id, enums.DraftStatusPending).
		Updates(map[string]any{
			"status":        status,
			"reviewer":      reviewer,
			"review_reason": reason,
			"reviewed_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
