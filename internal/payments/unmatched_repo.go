package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// UnmatchedRepository persists the review queue for payments the matcher
// could not confidently place.
type UnmatchedRepository struct {
	db *gorm.DB
}

func NewUnmatchedRepository(db *gorm.DB) *UnmatchedRepository {
	return &UnmatchedRepository{db: db}
}

func (r *UnmatchedRepository) WithTx(tx *gorm.DB) *UnmatchedRepository {
	return &UnmatchedRepository{db: tx}
}

// CreateIfAbsent queues the sale for review once; a replayed ingest that
// lands on the same sale is a no-op.
func (r *UnmatchedRepository) CreateIfAbsent(ctx context.Context, row *models.UnmatchedPayment) (*models.UnmatchedPayment, bool, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sale_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return nil, false, res.Error
	}
	created := res.RowsAffected > 0
	var stored models.UnmatchedPayment
	if err := r.db.WithContext(ctx).First(&stored, "sale_id = ?", row.SaleID).Error; err != nil {
		return nil, false, err
	}
	return &stored, created, nil
}

// FindByIDForCompany loads a review item enforcing tenant ownership.
func (r *UnmatchedRepository) FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*models.UnmatchedPayment, error) {
	var row models.UnmatchedPayment
	err := r.db.WithContext(ctx).
		First(&row, "id = ? AND company_id = ?", id, companyID).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListPending returns a tenant's open review queue, oldest first.
func (r *UnmatchedRepository) ListPending(ctx context.Context, companyID uuid.UUID, limit int) ([]models.UnmatchedPayment, error) {
	var rows []models.UnmatchedPayment
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND review_status = ?", companyID, enums.ReviewStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListPendingBatch returns open review items across all tenants for the
// periodic rematch pass.
func (r *UnmatchedRepository) ListPendingBatch(ctx context.Context, limit int) ([]models.UnmatchedPayment, error) {
	var rows []models.UnmatchedPayment
	err := r.db.WithContext(ctx).
		Where("review_status = ?", enums.ReviewStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Resolve closes a pending review item. The status guard makes concurrent
// resolutions race-safe: only one caller observes true.
func (r *UnmatchedRepository) Resolve(ctx context.Context, id uuid.UUID, resolvedBy *uuid.UUID) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.UnmatchedPayment{}).
		Where("id = ? AND review_status = ?", id, enums.ReviewStatusPending).
		Updates(map[string]any{
			"review_status":  enums.ReviewStatusMatched,
			"resolved_by_id": resolvedBy,
			"resolved_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
