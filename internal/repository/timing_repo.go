package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/grading-core/internal/models"
)

// TimingRepository records how long graders hold checked-out submissions.
type TimingRepository interface {
	Start(ctx context.Context, record *models.TimingRecord) error
	FinishLatest(ctx context.Context, submissionID uint) error
}

type timingRepository struct {
	db *gorm.DB
}

// NewTimingRepository instantiates the repository.
func NewTimingRepository(db *gorm.DB) TimingRepository {
	return &timingRepository{db: db}
}

func (r *timingRepository) Start(ctx context.Context, record *models.TimingRecord) error {
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now()
	}

	return r.db.WithContext(ctx).Create(record).Error
}

func (r *timingRepository) FinishLatest(ctx context.Context, submissionID uint) error {
	var record models.TimingRecord
	err := r.db.WithContext(ctx).
		Where("submission_id = ? AND finished_at IS NULL", submissionID).
		Order("started_at DESC").
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}

	now := time.Now()
	return r.db.WithContext(ctx).Model(&record).Update("finished_at", &now).Error
}
