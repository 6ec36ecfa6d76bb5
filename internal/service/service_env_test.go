package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/grading-core/internal/models"
	"github.com/noah-isme/grading-core/internal/repository"
)

type testEnv struct {
	db          *gorm.DB
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	profiles    repository.ProfileRepository
	timings     repository.TimingRepository
	mlModels    repository.ModelRepository
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Submission{},
		&models.GradeRecord{},
		&models.Rubric{},
		&models.RubricItem{},
		&models.RubricOption{},
		&models.StudentProfile{},
		&models.GradingModel{},
		&models.TimingRecord{},
	))

	return testEnv{
		db:          db,
		submissions: repository.NewSubmissionRepository(db),
		grades:      repository.NewGradeRepository(db),
		profiles:    repository.NewProfileRepository(db),
		timings:     repository.NewTimingRepository(db),
		mlModels:    repository.NewModelRepository(db),
	}
}

func testPolicy() Policy {
	return Policy{
		MinStaffBeforeML:              2,
		MinToUsePeer:                  2,
		StallTimeout:                  30 * time.Minute,
		ExpireAfter:                   24 * time.Hour,
		PeerGradersRequired:           3,
		RequiredPeerGradingPerStudent: 1,
		SimilarityThreshold:           0.5,
		ExcludeBannedGraders:          true,
		PeerSearchWindow:              50,
	}
}

func (e testEnv) seed(t *testing.T, submission *models.Submission) {
	t.Helper()
	require.NoError(t, e.submissions.Create(context.Background(), submission))
}

func (e testEnv) addGrade(t *testing.T, submissionID uint, graderType, graderID, status string) {
	t.Helper()
	require.NoError(t, e.grades.Create(context.Background(), &models.GradeRecord{
		SubmissionID: submissionID,
		GraderType:   graderType,
		GraderID:     graderID,
		Status:       status,
	}))
}

func (e testEnv) reload(t *testing.T, id uint) models.Submission {
	t.Helper()
	submission, err := e.submissions.GetByID(context.Background(), id)
	require.NoError(t, err)
	return submission
}

func (e testEnv) backdate(t *testing.T, id uint, age time.Duration) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.Submission{}).Where("id = ?", id).
		UpdateColumn("updated_at", time.Now().Add(-age)).Error)
}

func waitingSubmission(location, studentID, preferred, next string) models.Submission {
	return models.Submission{
		Location:            location,
		CourseID:            "course-1",
		StudentID:           studentID,
		StudentResponse:     "essay by " + studentID,
		ProblemID:           "problem-1",
		MaxScore:            10,
		PreferredGraderType: preferred,
		NextGraderType:      next,
		State:               models.StateWaitingToBeGraded,
	}
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu        sync.Mutex
	resubmits []uint
	finished  []uint
}

func (p *capturePublisher) PublishResubmit(_ context.Context, submission models.Submission) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resubmits = append(p.resubmits, submission.ID)
	return nil
}

func (p *capturePublisher) PublishFinished(_ context.Context, submission models.Submission) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = append(p.finished, submission.ID)
	return nil
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
