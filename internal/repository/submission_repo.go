package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/grading-core/internal/models"
)

// RoutingUpdate describes the post-grade routing outcome applied to a
// submission. Nil pointer fields are left untouched.
type RoutingUpdate struct {
	State              string
	NextGraderType     *string
	PreviousGraderType *string
}

// PeerCandidate is a pending peer-pool submission annotated with how many
// successful peer/basic-check grades it already carries.
type PeerCandidate struct {
	ID         uint
	StudentID  string
	NumGraders int64
	CreatedAt  time.Time
}

// SubmissionRepository defines data operations for submissions. All state
// transitions are conditional on the expected prior state so that concurrent
// writers lose races instead of clobbering each other.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	Update(ctx context.Context, submission *models.Submission) error

	// Claim atomically moves a submission from fromState into being_graded
	// and stamps the pool that now owns it. Returns false when another
	// requester won the race.
	Claim(ctx context.Context, id uint, fromState, nextGraderType string) (bool, error)
	// TransitionState conditionally moves a submission between states.
	TransitionState(ctx context.Context, id uint, fromState, toState string) (bool, error)
	// UpdateRouting rewrites next_grader_type for a submission still waiting.
	UpdateRouting(ctx context.Context, id uint, nextGraderType string) (bool, error)
	// ApplyRouting commits a routing decision, conditional on the state the
	// decision was computed against.
	ApplyRouting(ctx context.Context, id uint, fromState string, update RoutingUpdate) (bool, error)
	// MarkPostedBack records queue delivery; only legal once finished.
	MarkPostedBack(ctx context.Context, id uint) (bool, error)

	FindCanonical(ctx context.Context, location, studentResponse string) (*models.Submission, error)
	DistinctLocations(ctx context.Context) ([]string, error)
	DistinctLocationsForCourse(ctx context.Context, courseID string) ([]string, error)
	DistinctLocationsForStudent(ctx context.Context, studentID, courseID, preferredGraderType string) ([]string, error)

	PendingForPool(ctx context.Context, location, pool string) ([]models.Submission, error)
	PendingCountForLocation(ctx context.Context, location string) (int64, error)
	StaffGradedCount(ctx context.Context, location string) (int64, error)
	StaffPendingCount(ctx context.Context, location string, states []string) (int64, error)
	StaffGradedTexts(ctx context.Context, location string) ([]string, error)
	LowConfidenceFinishedML(ctx context.Context, location string) ([]models.Submission, error)
	PeerCandidates(ctx context.Context, location, graderID string, limit int) ([]PeerCandidate, error)
	CountPeerPendingForLocation(ctx context.Context, location, graderID string) (int64, error)
	CountPreferredForLocation(ctx context.Context, location, preferredGraderType string) (int64, error)
	CountStudentResponsesForLocation(ctx context.Context, studentID, location, preferredGraderType string) (int64, error)

	MLPreferredPendingNewest(ctx context.Context, location string, limit int) ([]models.Submission, error)
	StaffParkedMLPreferred(ctx context.Context) ([]models.Submission, error)
	StalledBefore(ctx context.Context, cutoff time.Time) ([]models.Submission, error)
	ExpiredBefore(ctx context.Context, cutoff time.Time) ([]models.Submission, error)
	StuckInBasicCheck(ctx context.Context) ([]models.Submission, error)
	FailedBasicCheck(ctx context.Context) ([]models.Submission, error)
	UnfinishedDuplicates(ctx context.Context) ([]models.Submission, error)
	FlaggedForCourse(ctx context.Context, courseID string) ([]models.Submission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

func (r *submissionRepository) Claim(ctx context.Context, id uint, fromState, nextGraderType string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND state = ?", id, fromState).
		Updates(map[string]interface{}{
			"state":            models.StateBeingGraded,
			"next_grader_type": nextGraderType,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *submissionRepository) TransitionState(ctx context.Context, id uint, fromState, toState string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND state = ?", id, fromState).
		Updates(map[string]interface{}{
			"state":      toState,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *submissionRepository) UpdateRouting(ctx context.Context, id uint, nextGraderType string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND state = ?", id, models.StateWaitingToBeGraded).
		Updates(map[string]interface{}{
			"next_grader_type": nextGraderType,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *submissionRepository) ApplyRouting(ctx context.Context, id uint, fromState string, update RoutingUpdate) (bool, error) {
	values := map[string]interface{}{
		"state":      update.State,
		"updated_at": time.Now(),
	}
	if update.NextGraderType != nil {
		values["next_grader_type"] = *update.NextGraderType
	}
	if update.PreviousGraderType != nil {
		values["previous_grader_type"] = *update.PreviousGraderType
	}

	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND state = ?", id, fromState).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *submissionRepository) MarkPostedBack(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND state = ? AND posted_results_back_to_queue = ?", id, models.StateFinished, false).
		Updates(map[string]interface{}{
			"posted_results_back_to_queue": true,
			"updated_at":                   time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *submissionRepository) FindCanonical(ctx context.Context, location, studentResponse string) (*models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Where("location = ? AND student_response = ? AND is_duplicate = ?", location, studentResponse, false).
		Order("created_at ASC").
		First(&submission).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &submission, nil
}

func (r *submissionRepository) DistinctLocations(ctx context.Context) ([]string, error) {
	var locations []string
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Distinct("location").
		Pluck("location", &locations).Error

	return locations, err
}

func (r *submissionRepository) DistinctLocationsForCourse(ctx context.Context, courseID string) ([]string, error) {
	var locations []string
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("course_id = ?", courseID).
		Distinct("location").
		Pluck("location", &locations).Error

	return locations, err
}

func (r *submissionRepository) DistinctLocationsForStudent(ctx context.Context, studentID, courseID, preferredGraderType string) ([]string, error) {
	var locations []string
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("student_id = ? AND course_id = ? AND preferred_grader_type = ?", studentID, courseID, preferredGraderType).
		Distinct("location").
		Pluck("location", &locations).Error

	return locations, err
}

func (r *submissionRepository) PendingForPool(ctx context.Context, location, pool string) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("location = ? AND state = ? AND next_grader_type = ?", location, models.StateWaitingToBeGraded, pool).
		Order("created_at ASC").
		Find(&submissions).Error

	return submissions, err
}

func (r *submissionRepository) PendingCountForLocation(ctx context.Context, location string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("location = ? AND state = ?", location, models.StateWaitingToBeGraded).
		Count(&count).Error

	return count, err
}

func (r *submissionRepository) StaffGradedCount(ctx context.Context, location string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("location = ? AND state = ? AND previous_grader_type = ?", location, models.StateFinished, models.GraderTypeInstructor).
		Count(&count).Error

	return count, err
}

func (r *submissionRepository) StaffPendingCount(ctx context.Context, location string, states []string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("location = ? AND next_grader_type = ? AND state IN ?", location, models.GraderTypeInstructor, states).
		Where("is_duplicate = ? AND is_plagiarized = ?", false, false).
		Count(&count).Error

	return count, err
}

func (r *submissionRepository) StaffGradedTexts(ctx context.Context, location string) ([]string, error) {
	var texts []string
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("location = ? AND state = ? AND previous_grader_type = ?", location, models.StateFinished, models.GraderTypeInstructor).
		Distinct("student_response").
		Pluck("student_response", &texts).Error

	return texts, err
}

func (r *submissionRepository) LowConfidenceFinishedML(ctx context.Context, location string) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Joins("JOIN grade_records ON grade_records.submission_id = submissions.id").
		Where("submissions.location = ? AND submissions.state = ? AND submissions.next_grader_type = ?",
			location, models.StateFinished, models.GraderTypeML).
		Where("grade_records.grader_type = ? AND grade_records.status = ?", models.GraderTypeML, models.GradeStatusSuccess).
		Group("submissions.id").
		Order("MIN(grade_records.confidence) ASC").
		Find(&submissions).Error

	return submissions, err
}

func (r *submissionRepository) PeerCandidates(ctx context.Context, location, graderID string, limit int) ([]PeerCandidate, error) {
	var candidates []PeerCandidate
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Select("submissions.id, submissions.student_id, submissions.created_at, COUNT(grade_records.id) AS num_graders").
		Joins("LEFT JOIN grade_records ON grade_records.submission_id = submissions.id AND grade_records.status = ? AND grade_records.grader_type IN ?",
			models.GradeStatusSuccess, []string{models.GraderTypePeer, models.GraderTypeBasicCheck}).
		Where("submissions.location = ? AND submissions.state = ? AND submissions.next_grader_type = ?",
			location, models.StateWaitingToBeGraded, models.GraderTypePeer).
		Where("submissions.is_duplicate = ? AND submissions.student_id <> ?", false, graderID).
		Group("submissions.id, submissions.student_id, submissions.created_at").
		Order("submissions.created_at ASC").
		Limit(limit).
		Scan(&candidates).Error

	return candidates, err
}

func (r *submissionRepository) CountPeerPendingForLocation(ctx context.Context, location, graderID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("location = ? AND state = ? AND next_grader_type = ? AND is_duplicate = ?",
			location, models.StateWaitingToBeGraded, models.GraderTypePeer, false).
		Where("student_id <> ?", graderID).
		Count(&count).Error

	return count, err
}

func (r *submissionRepository) CountPreferredForLocation(ctx context.Context, location, preferredGraderType string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("location = ? AND preferred_grader_type = ?", location, preferredGraderType).
		Count(&count).Error

	return count, err
}

func (r *submissionRepository) CountStudentResponsesForLocation(ctx context.Context, studentID, location, preferredGraderType string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("student_id = ? AND location = ? AND preferred_grader_type = ?", studentID, location, preferredGraderType).
		Count(&count).Error

	return count, err
}

func (r *submissionRepository) MLPreferredPendingNewest(ctx context.Context, location string, limit int) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("location = ? AND state = ? AND preferred_grader_type = ?",
			location, models.StateWaitingToBeGraded, models.GraderTypeML).
		Order("created_at DESC").
		Limit(limit).
		Find(&submissions).Error

	return submissions, err
}

func (r *submissionRepository) StaffParkedMLPreferred(ctx context.Context) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("state = ? AND next_grader_type = ? AND preferred_grader_type = ?",
			models.StateWaitingToBeGraded, models.GraderTypeInstructor, models.GraderTypeML).
		Find(&submissions).Error

	return submissions, err
}

func (r *submissionRepository) StalledBefore(ctx context.Context, cutoff time.Time) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", models.StateBeingGraded, cutoff).
		Find(&submissions).Error

	return submissions, err
}

func (r *submissionRepository) ExpiredBefore(ctx context.Context, cutoff time.Time) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("state = ? AND posted_results_back_to_queue = ? AND updated_at < ?",
			models.StateWaitingToBeGraded, false, cutoff).
		Find(&submissions).Error

	return submissions, err
}

func (r *submissionRepository) StuckInBasicCheck(ctx context.Context) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("next_grader_type = ? AND state IN ?", models.GraderTypeBasicCheck,
			[]string{models.StateWaitingToBeGraded, models.StateBeingGraded}).
		Find(&submissions).Error

	return submissions, err
}

func (r *submissionRepository) FailedBasicCheck(ctx context.Context) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("state = ?", models.StateWaitingToBeGraded).
		Where("EXISTS (SELECT 1 FROM grade_records WHERE grade_records.submission_id = submissions.id AND grade_records.grader_type = ? AND grade_records.status = ?)",
			models.GraderTypeBasicCheck, models.GradeStatusFailure).
		Where("NOT EXISTS (SELECT 1 FROM grade_records WHERE grade_records.submission_id = submissions.id AND grade_records.status = ?)",
			models.GradeStatusSuccess).
		Find(&submissions).Error

	return submissions, err
}

func (r *submissionRepository) UnfinishedDuplicates(ctx context.Context) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("preferred_grader_type = ? AND is_duplicate = ? AND posted_results_back_to_queue = ?",
			models.GraderTypePeer, true, false).
		Where("state <> ?", models.StateFinished).
		Find(&submissions).Error

	return submissions, err
}

func (r *submissionRepository) FlaggedForCourse(ctx context.Context, courseID string) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("state = ? AND course_id = ?", models.StateFlagged, courseID).
		Find(&submissions).Error

	return submissions, err
}
