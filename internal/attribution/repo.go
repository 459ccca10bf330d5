package attribution

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
)

// Repository reads externally-synced attribution records.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByContact loads the synced record for a contact, if one exists.
func (r *Repository) FindByContact(ctx context.Context, companyID, contactID uuid.UUID) (*models.AttributionRecord, error) {
	var record models.AttributionRecord
	err := r.db.WithContext(ctx).
		First(&record, "company_id = ? AND contact_id = ?", companyID, contactID).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert stores a synced record, replacing any previous one for the contact.
func (r *Repository) Upsert(ctx context.Context, record *models.AttributionRecord) error {
	var existing models.AttributionRecord
	err := r.db.WithContext(ctx).
		First(&existing, "company_id = ? AND contact_id = ?", record.CompanyID, record.ContactID).Error
	if err == nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		return r.db.WithContext(ctx).Save(record).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return r.db.WithContext(ctx).Create(record).Error
}
