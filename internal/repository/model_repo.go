package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/grading-core/internal/models"
)

// ModelRepository exposes the trained-model registry written by the external
// ML trainer.
type ModelRepository interface {
	// Ready reports whether a usable model and rubric exist for a location.
	Ready(ctx context.Context, location string) (bool, error)
	Create(ctx context.Context, model *models.GradingModel) error
}

type modelRepository struct {
	db *gorm.DB
}

// NewModelRepository instantiates the repository.
func NewModelRepository(db *gorm.DB) ModelRepository {
	return &modelRepository{db: db}
}

func (r *modelRepository) Ready(ctx context.Context, location string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GradingModel{}).
		Where("location = ? AND creation_succeeded = ?", location, true).
		Count(&count).Error

	return count > 0, err
}

func (r *modelRepository) Create(ctx context.Context, model *models.GradingModel) error {
	return r.db.WithContext(ctx).Create(model).Error
}
