package contacts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
)

// Repository exposes contact persistence operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert creates or refreshes a contact keyed on (company_id, external_id).
// Webhook replays and out-of-order deliveries converge on one row.
func (r *Repository) Upsert(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "company_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "email", "phone", "custom_fields", "tags", "updated_at",
			}),
		}).
		Create(contact).Error
	if err != nil {
		return nil, err
	}
	var stored models.Contact
	if err := r.db.WithContext(ctx).
		First(&stored, "company_id = ? AND external_id = ?", contact.CompanyID, contact.ExternalID).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// FindByID loads a contact by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	var contact models.Contact
	if err := r.db.WithContext(ctx).First(&contact, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

// FindByExternalID loads a contact by its CRM id within a tenant.
func (r *Repository) FindByExternalID(ctx context.Context, companyID uuid.UUID, externalID string) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.WithContext(ctx).
		First(&contact, "company_id = ? AND external_id = ?", companyID, externalID).Error
	if err != nil {
		return nil, err
	}
	return &contact, nil
}
