package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/grading-core/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func makeSubmission(location, studentID, state, nextGraderType string) models.Submission {
	return models.Submission{
		Location:            location,
		CourseID:            "course-1",
		StudentID:           studentID,
		StudentResponse:     "an essay by " + studentID,
		ProblemID:           "problem-1",
		MaxScore:            10,
		PreferredGraderType: models.GraderTypePeer,
		NextGraderType:      nextGraderType,
		State:               state,
	}
}

func TestClaimIsExclusive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := makeSubmission("loc-a", "alice", models.StateWaitingToBeGraded, models.GraderTypeInstructor)
	require.NoError(t, repo.Create(ctx, &submission))

	ok, err := repo.Claim(ctx, submission.ID, models.StateWaitingToBeGraded, models.GraderTypeInstructor)
	require.NoError(t, err)
	require.True(t, ok)

	// The submission left waiting, so a second claimer must lose.
	ok, err = repo.Claim(ctx, submission.ID, models.StateWaitingToBeGraded, models.GraderTypeInstructor)
	require.NoError(t, err)
	require.False(t, ok)

	claimed, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.StateBeingGraded, claimed.State)
	require.Equal(t, models.GraderTypeInstructor, claimed.NextGraderType)
}

func TestApplyRoutingConditionalOnState(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := makeSubmission("loc-a", "alice", models.StateBeingGraded, models.GraderTypeInstructor)
	require.NoError(t, repo.Create(ctx, &submission))

	next := models.GraderTypeML
	previous := models.GraderTypeInstructor
	update := RoutingUpdate{
		State:              models.StateWaitingToBeGraded,
		NextGraderType:     &next,
		PreviousGraderType: &previous,
	}

	ok, err := repo.ApplyRouting(ctx, submission.ID, models.StateFinished, update)
	require.NoError(t, err)
	require.False(t, ok, "routing computed against the wrong state must not apply")

	ok, err = repo.ApplyRouting(ctx, submission.ID, models.StateBeingGraded, update)
	require.NoError(t, err)
	require.True(t, ok)

	updated, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.StateWaitingToBeGraded, updated.State)
	require.Equal(t, models.GraderTypeML, updated.NextGraderType)
	require.Equal(t, models.GraderTypeInstructor, updated.PreviousGraderType)
}

func TestMarkPostedBackIsOneShot(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	waiting := makeSubmission("loc-a", "alice", models.StateWaitingToBeGraded, models.GraderTypePeer)
	require.NoError(t, repo.Create(ctx, &waiting))

	ok, err := repo.MarkPostedBack(ctx, waiting.ID)
	require.NoError(t, err)
	require.False(t, ok, "unfinished submissions must not be marked delivered")

	finished := makeSubmission("loc-a", "bob", models.StateFinished, models.GraderTypePeer)
	require.NoError(t, repo.Create(ctx, &finished))

	ok, err = repo.MarkPostedBack(ctx, finished.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.MarkPostedBack(ctx, finished.ID)
	require.NoError(t, err)
	require.False(t, ok, "delivery must be recorded at most once")
}

func TestFindCanonicalReturnsEarliestOriginal(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	text := "identical essay text"

	duplicate := makeSubmission("loc-a", "carol", models.StateWaitingToBeGraded, models.GraderTypePeer)
	duplicate.StudentResponse = text
	duplicate.IsDuplicate = true
	duplicate.CreatedAt = time.Now().Add(-3 * time.Hour)
	require.NoError(t, repo.Create(ctx, &duplicate))

	original := makeSubmission("loc-a", "alice", models.StateWaitingToBeGraded, models.GraderTypePeer)
	original.StudentResponse = text
	original.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, repo.Create(ctx, &original))

	later := makeSubmission("loc-a", "bob", models.StateWaitingToBeGraded, models.GraderTypePeer)
	later.StudentResponse = text
	later.CreatedAt = time.Now().Add(-1 * time.Hour)
	require.NoError(t, repo.Create(ctx, &later))

	canonical, err := repo.FindCanonical(ctx, "loc-a", text)
	require.NoError(t, err)
	require.NotNil(t, canonical)
	require.Equal(t, original.ID, canonical.ID, "the oldest non-duplicate must be canonical")

	canonical, err = repo.FindCanonical(ctx, "loc-a", "unseen text")
	require.NoError(t, err)
	require.Nil(t, canonical)
}

func TestPeerCandidatesExcludesOwnWorkAndCountsGraders(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	grades := NewGradeRepository(db)
	ctx := context.Background()

	ungraded := makeSubmission("loc-a", "alice", models.StateWaitingToBeGraded, models.GraderTypePeer)
	ungraded.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, repo.Create(ctx, &ungraded))

	graded := makeSubmission("loc-a", "bob", models.StateWaitingToBeGraded, models.GraderTypePeer)
	graded.CreatedAt = time.Now().Add(-1 * time.Hour)
	require.NoError(t, repo.Create(ctx, &graded))
	require.NoError(t, grades.Create(ctx, &models.GradeRecord{
		SubmissionID: graded.ID,
		GraderType:   models.GraderTypePeer,
		GraderID:     "dave",
		Status:       models.GradeStatusSuccess,
	}))

	own := makeSubmission("loc-a", "carol", models.StateWaitingToBeGraded, models.GraderTypePeer)
	require.NoError(t, repo.Create(ctx, &own))

	candidates, err := repo.PeerCandidates(ctx, "loc-a", "carol", 50)
	require.NoError(t, err)
	require.Len(t, candidates, 2, "the requester's own submission is never a candidate")

	byID := map[uint]int64{}
	for _, candidate := range candidates {
		byID[candidate.ID] = candidate.NumGraders
	}
	require.Equal(t, int64(0), byID[ungraded.ID])
	require.Equal(t, int64(1), byID[graded.ID])
}

func TestLowConfidenceFinishedMLScopedToMLPool(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	grades := NewGradeRepository(db)
	ctx := context.Background()

	shaky := makeSubmission("loc-a", "alice", models.StateFinished, models.GraderTypeML)
	require.NoError(t, repo.Create(ctx, &shaky))
	for _, confidence := range []float64{0.9, 0.3} {
		require.NoError(t, grades.Create(ctx, &models.GradeRecord{
			SubmissionID: shaky.ID,
			GraderType:   models.GraderTypeML,
			GraderID:     "model-1",
			Status:       models.GradeStatusSuccess,
			Confidence:   confidence,
		}))
	}

	shakier := makeSubmission("loc-a", "bob", models.StateFinished, models.GraderTypeML)
	require.NoError(t, repo.Create(ctx, &shakier))
	require.NoError(t, grades.Create(ctx, &models.GradeRecord{
		SubmissionID: shakier.ID,
		GraderType:   models.GraderTypeML,
		GraderID:     "model-1",
		Status:       models.GradeStatusSuccess,
		Confidence:   0.1,
	}))

	// Finished by peers; the old ML grade must not drag it into review.
	peerFinished := makeSubmission("loc-a", "carol", models.StateFinished, models.GraderTypePeer)
	require.NoError(t, repo.Create(ctx, &peerFinished))
	require.NoError(t, grades.Create(ctx, &models.GradeRecord{
		SubmissionID: peerFinished.ID,
		GraderType:   models.GraderTypeML,
		GraderID:     "model-1",
		Status:       models.GradeStatusSuccess,
		Confidence:   0.05,
	}))

	failedOnly := makeSubmission("loc-a", "dave", models.StateFinished, models.GraderTypeML)
	require.NoError(t, repo.Create(ctx, &failedOnly))
	require.NoError(t, grades.Create(ctx, &models.GradeRecord{
		SubmissionID: failedOnly.ID,
		GraderType:   models.GraderTypeML,
		GraderID:     "model-1",
		Status:       models.GradeStatusFailure,
		Confidence:   0.1,
	}))

	reviewable, err := repo.LowConfidenceFinishedML(ctx, "loc-a")
	require.NoError(t, err)
	require.Len(t, reviewable, 2, "one row per submission, ML-routed successes only")
	require.Equal(t, shakier.ID, reviewable[0].ID, "least confident submission comes up for review first")
	require.Equal(t, shaky.ID, reviewable[1].ID)
}

func TestFailedBasicCheckRequiresFailureAndNoSuccess(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	grades := NewGradeRepository(db)
	ctx := context.Background()

	failed := makeSubmission("loc-a", "alice", models.StateWaitingToBeGraded, models.GraderTypeBasicCheck)
	require.NoError(t, repo.Create(ctx, &failed))
	require.NoError(t, grades.Create(ctx, &models.GradeRecord{
		SubmissionID: failed.ID,
		GraderType:   models.GraderTypeBasicCheck,
		GraderID:     "checker",
		Status:       models.GradeStatusFailure,
	}))

	recovered := makeSubmission("loc-a", "bob", models.StateWaitingToBeGraded, models.GraderTypePeer)
	require.NoError(t, repo.Create(ctx, &recovered))
	require.NoError(t, grades.Create(ctx, &models.GradeRecord{
		SubmissionID: recovered.ID,
		GraderType:   models.GraderTypeBasicCheck,
		GraderID:     "checker",
		Status:       models.GradeStatusFailure,
	}))
	require.NoError(t, grades.Create(ctx, &models.GradeRecord{
		SubmissionID: recovered.ID,
		GraderType:   models.GraderTypeBasicCheck,
		GraderID:     "checker",
		Status:       models.GradeStatusSuccess,
	}))

	stuck, err := repo.FailedBasicCheck(ctx)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	require.Equal(t, failed.ID, stuck[0].ID)
}

func TestStalledAndExpiredCutoffs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	stalled := makeSubmission("loc-a", "alice", models.StateBeingGraded, models.GraderTypeInstructor)
	require.NoError(t, repo.Create(ctx, &stalled))
	require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", stalled.ID).
		UpdateColumn("updated_at", time.Now().Add(-2*time.Hour)).Error)

	fresh := makeSubmission("loc-a", "bob", models.StateBeingGraded, models.GraderTypeInstructor)
	require.NoError(t, repo.Create(ctx, &fresh))

	expired := makeSubmission("loc-a", "carol", models.StateWaitingToBeGraded, models.GraderTypePeer)
	require.NoError(t, repo.Create(ctx, &expired))
	require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", expired.ID).
		UpdateColumn("updated_at", time.Now().Add(-48*time.Hour)).Error)

	stalledRows, err := repo.StalledBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stalledRows, 1)
	require.Equal(t, stalled.ID, stalledRows[0].ID)

	expiredRows, err := repo.ExpiredBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expiredRows, 1)
	require.Equal(t, expired.ID, expiredRows[0].ID)
}

func TestStaffCountsIgnoreDuplicatesAndPlagiarism(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	graded := makeSubmission("loc-a", "alice", models.StateFinished, models.GraderTypePeer)
	graded.PreviousGraderType = models.GraderTypeInstructor
	require.NoError(t, repo.Create(ctx, &graded))

	pending := makeSubmission("loc-a", "bob", models.StateWaitingToBeGraded, models.GraderTypeInstructor)
	require.NoError(t, repo.Create(ctx, &pending))

	duplicate := makeSubmission("loc-a", "carol", models.StateWaitingToBeGraded, models.GraderTypeInstructor)
	duplicate.IsDuplicate = true
	require.NoError(t, repo.Create(ctx, &duplicate))

	gradedCount, err := repo.StaffGradedCount(ctx, "loc-a")
	require.NoError(t, err)
	require.Equal(t, int64(1), gradedCount)

	pendingCount, err := repo.StaffPendingCount(ctx, "loc-a",
		[]string{models.StateWaitingToBeGraded, models.StateBeingGraded})
	require.NoError(t, err)
	require.Equal(t, int64(1), pendingCount)
}
