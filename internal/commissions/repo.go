package commissions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// Repository exposes commission persistence operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// CreateIfAbsent inserts a commission unless the sale already has one. The
// sale_id unique index is the duplicate-delivery guard; a conflicting insert
// is a no-op and the stored row is returned.
func (r *Repository) CreateIfAbsent(ctx context.Context, commission *models.Commission) (*models.Commission, bool, error) {
	if commission.ID == uuid.Nil {
		commission.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sale_id"}},
			DoNothing: true,
		}).
		Create(commission)
	if res.Error != nil {
		return nil, false, res.Error
	}
	created := res.RowsAffected > 0
	stored, err := r.FindBySale(ctx, commission.SaleID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// FindBySale loads the commission for a sale.
func (r *Repository) FindBySale(ctx context.Context, saleID uuid.UUID) (*models.Commission, error) {
	var commission models.Commission
	if err := r.db.WithContext(ctx).First(&commission, "sale_id = ?", saleID).Error; err != nil {
		return nil, err
	}
	return &commission, nil
}

// FindByID loads a commission by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Commission, error) {
	var commission models.Commission
	if err := r.db.WithContext(ctx).First(&commission, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &commission, nil
}

// UpdateRelease persists an advanced release amount and status.
func (r *Repository) UpdateRelease(ctx context.Context, id uuid.UUID, released models.Commission) error {
	return r.db.WithContext(ctx).
		Model(&models.Commission{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"released_amount": released.ReleasedAmount,
			"release_status":  released.ReleaseStatus,
		}).Error
}

// ListByUser returns a rep's commissions within a tenant.
func (r *Repository) ListByUser(ctx context.Context, companyID, userID uuid.UUID, limit int) ([]models.Commission, error) {
	var rows []models.Commission
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND user_id = ?", companyID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkPaid advances a fully-released commission to paid.
func (r *Repository) MarkPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Commission{}).
		Where("id = ? AND release_status = ?", id, enums.ReleaseStatusReleased).
		Update("release_status", enums.ReleaseStatusPaid)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
