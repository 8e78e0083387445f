package plans

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
)

// Repository reads the plan catalog.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListActive returns purchasable plans ordered by price.
func (r *Repository) ListActive(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("tokens ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// FindByName returns nil, nil for an unknown plan.
func (r *Repository) FindByName(ctx context.Context, name enums.PlanName) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}
