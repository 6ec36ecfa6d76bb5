package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/grading-core/internal/models"
)

// ProfileRepository defines data operations for student grading profiles.
type ProfileRepository interface {
	GetByStudent(ctx context.Context, studentID string) (models.StudentProfile, error)
	Create(ctx context.Context, profile *models.StudentProfile) error
	SetBanned(ctx context.Context, studentID string, banned bool) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository instantiates the repository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByStudent(ctx context.Context, studentID string) (models.StudentProfile, error) {
	var profile models.StudentProfile
	if err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&profile).Error; err != nil {
		return models.StudentProfile{}, err
	}

	return profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *models.StudentProfile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *profileRepository) SetBanned(ctx context.Context, studentID string, banned bool) error {
	result := r.db.WithContext(ctx).Model(&models.StudentProfile{}).
		Where("student_id = ?", studentID).
		Update("peer_grading_banned", banned)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
