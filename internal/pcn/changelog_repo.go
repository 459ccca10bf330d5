package pcn

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/closetrack-backend/pkg/db/models"
)

// ChangelogRepository persists the append-only PCN audit trail. There are no
// update or delete operations on purpose.
type ChangelogRepository struct {
	db *gorm.DB
}

func NewChangelogRepository(db *gorm.DB) *ChangelogRepository {
	return &ChangelogRepository{db: db}
}

func (r *ChangelogRepository) WithTx(tx *gorm.DB) *ChangelogRepository {
	return &ChangelogRepository{db: tx}
}

func (r *ChangelogRepository) Append(ctx context.Context, entry *models.PCNChangelogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByAppointment returns the audit trail oldest first.
func (r *ChangelogRepository) ListByAppointment(ctx context.Context, companyID, appointmentID uuid.UUID) ([]models.PCNChangelogEntry, error) {
	var rows []models.PCNChangelogEntry
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND appointment_id = ?", companyID, appointmentID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
