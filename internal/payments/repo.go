package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
	"github.com/angelmondragon/closetrack-backend/pkg/enums"
)

// Repository persists sales. The external payment id unique index makes
// ingest replay-safe across processors retrying deliveries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// CreateIfAbsent inserts the sale unless the external payment id was already
// seen. Returns the stored row and whether this call created it.
func (r *Repository) CreateIfAbsent(ctx context.Context, sale *models.Sale) (*models.Sale, bool, error) {
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_payment_id"}},
			DoNothing: true,
		}).
		Create(sale)
	if res.Error != nil {
		return nil, false, res.Error
	}
	created := res.RowsAffected > 0
	stored, err := r.FindByExternalPaymentID(ctx, sale.ExternalPaymentID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// FindByIDForCompany loads a sale enforcing tenant ownership.
func (r *Repository) FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		First(&sale, "id = ? AND company_id = ?", id, companyID).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *Repository) FindByExternalPaymentID(ctx context.Context, externalPaymentID string) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		First(&sale, "external_payment_id = ?", externalPaymentID).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// AssignMatch records the matched appointment, how the match was made and at
// what confidence. Manual overrides pass the resolving user.
func (r *Repository) AssignMatch(ctx context.Context, saleID, appointmentID uuid.UUID, matchedBy enums.MatchedBy, confidence float64, resolvedBy *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ?", saleID).
		Updates(map[string]any{
			"appointment_id":     appointmentID,
			"matched_by":         matchedBy,
			"match_confidence":   confidence,
			"matched_by_user_id": resolvedBy,
		}).Error
}
