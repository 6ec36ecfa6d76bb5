package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/grading-core/internal/models"
)

// GradeRepository defines data operations for grade records and their rubric
// trees. Records are append-only; the only write beyond Create is the
// transactional deep copy used by duplicate propagation.
type GradeRepository interface {
	Create(ctx context.Context, grade *models.GradeRecord) error
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.GradeRecord, error)
	SuccessfulPeerGraders(ctx context.Context, submissionID uint) ([]string, error)
	CountSuccessfulPeer(ctx context.Context, submissionID uint) (int64, error)
	HasFailures(ctx context.Context, submissionID uint) (bool, error)
	CountByGraderForLocation(ctx context.Context, graderID, location string) (int64, error)

	// PropagateToDuplicate copies every grade record owned by the original,
	// including the full rubric tree, onto the duplicate and finishes it in
	// the same transaction. Returns false when the duplicate was no longer
	// in a copyable state (another worker got there first).
	PropagateToDuplicate(ctx context.Context, originalID, duplicateID uint) (bool, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository instantiates the repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) Create(ctx context.Context, grade *models.GradeRecord) error {
	return r.db.WithContext(ctx).Create(grade).Error
}

func (r *gradeRepository) treeQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.GradeRecord{}).
		Preload("Rubrics").
		Preload("Rubrics.Items").
		Preload("Rubrics.Items.Options")
}

func (r *gradeRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.GradeRecord, error) {
	var grades []models.GradeRecord
	err := r.treeQuery(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Find(&grades).Error

	return grades, err
}

func (r *gradeRepository) SuccessfulPeerGraders(ctx context.Context, submissionID uint) ([]string, error) {
	var graders []string
	err := r.db.WithContext(ctx).Model(&models.GradeRecord{}).
		Where("submission_id = ? AND grader_type = ? AND status = ?",
			submissionID, models.GraderTypePeer, models.GradeStatusSuccess).
		Pluck("grader_id", &graders).Error

	return graders, err
}

func (r *gradeRepository) CountSuccessfulPeer(ctx context.Context, submissionID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GradeRecord{}).
		Where("submission_id = ? AND grader_type = ? AND status = ?",
			submissionID, models.GraderTypePeer, models.GradeStatusSuccess).
		Count(&count).Error

	return count, err
}

func (r *gradeRepository) HasFailures(ctx context.Context, submissionID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GradeRecord{}).
		Where("submission_id = ? AND status = ?", submissionID, models.GradeStatusFailure).
		Count(&count).Error

	return count > 0, err
}

func (r *gradeRepository) CountByGraderForLocation(ctx context.Context, graderID, location string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GradeRecord{}).
		Joins("JOIN submissions ON submissions.id = grade_records.submission_id").
		Where("grade_records.grader_id = ? AND submissions.location = ?", graderID, location).
		Count(&count).Error

	return count, err
}

func (r *gradeRepository) PropagateToDuplicate(ctx context.Context, originalID, duplicateID uint) (bool, error) {
	copied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Flip the duplicate first so a concurrent sweep aborts here instead
		// of double-copying the grade tree.
		result := tx.Model(&models.Submission{}).
			Where("id = ? AND is_duplicate = ? AND state <> ?", duplicateID, true, models.StateFinished).
			Updates(map[string]interface{}{
				"state":                models.StateFinished,
				"previous_grader_type": models.GraderTypePeer,
				"updated_at":           time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		var grades []models.GradeRecord
		if err := tx.Model(&models.GradeRecord{}).
			Preload("Rubrics").
			Preload("Rubrics.Items").
			Preload("Rubrics.Items.Options").
			Where("submission_id = ?", originalID).
			Find(&grades).Error; err != nil {
			return err
		}

		for _, grade := range grades {
			clone := grade.CloneForSubmission(duplicateID)
			if err := tx.Create(&clone).Error; err != nil {
				return err
			}
		}

		copied = true
		return nil
	})

	return copied, err
}
