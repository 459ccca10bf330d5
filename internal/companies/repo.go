package companies

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
)

// Repository exposes tenant persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a company repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a tenant by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	if err := r.db.WithContext(ctx).First(&company, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

// FindByExternalLocationID resolves the tenant owning a CRM location.
func (r *Repository) FindByExternalLocationID(ctx context.Context, externalID string) (*models.Company, error) {
	var company models.Company
	err := r.db.WithContext(ctx).
		First(&company, "external_location_id = ?", externalID).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// Update persists mutated tenant configuration.
func (r *Repository) Update(ctx context.Context, company *models.Company) error {
	return r.db.WithContext(ctx).Save(company).Error
}
