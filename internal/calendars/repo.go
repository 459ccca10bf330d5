package calendars

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
)

// Repository exposes calendar persistence operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert creates or refreshes a calendar keyed on (company_id, external_id).
// The manually-assigned traffic source is deliberately NOT overwritten by
// sync updates; it is tenant configuration, not CRM data.
func (r *Repository) Upsert(ctx context.Context, calendar *models.Calendar) (*models.Calendar, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "company_id"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "updated_at",
			}),
		}).
		Create(calendar).Error
	if err != nil {
		return nil, err
	}
	var stored models.Calendar
	if err := r.db.WithContext(ctx).
		First(&stored, "company_id = ? AND external_id = ?", calendar.CompanyID, calendar.ExternalID).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// FindByID loads a calendar by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Calendar, error) {
	var calendar models.Calendar
	if err := r.db.WithContext(ctx).First(&calendar, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &calendar, nil
}

// FindByExternalID loads a calendar by its CRM id within a tenant.
func (r *Repository) FindByExternalID(ctx context.Context, companyID uuid.UUID, externalID string) (*models.Calendar, error) {
	var calendar models.Calendar
	err := r.db.WithContext(ctx).
		First(&calendar, "company_id = ? AND external_id = ?", companyID, externalID).Error
	if err != nil {
		return nil, err
	}
	return &calendar, nil
}
