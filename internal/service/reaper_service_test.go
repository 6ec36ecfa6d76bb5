package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grading-core/internal/models"
)

func newReaperForTest(env testEnv, policy Policy, events EventPublisher) ReaperService {
	routing := newRoutingForTest(env, policy)
	duplicates := NewDuplicateService(env.submissions, env.grades, events, nopLogger())
	return NewReaperService(env.submissions, env.grades, routing, duplicates, events, policy, nopLogger())
}

func TestSweepResetsTimedOutSubmissionsOnce(t *testing.T) {
	env := newTestEnv(t)
	reaper := newReaperForTest(env, testPolicy(), nil)
	ctx := context.Background()

	stalled := waitingSubmission("loc-a", "alice", models.GraderTypePeer, models.GraderTypePeer)
	stalled.State = models.StateBeingGraded
	env.seed(t, &stalled)
	env.backdate(t, stalled.ID, time.Hour)

	fresh := waitingSubmission("loc-a", "bob", models.GraderTypePeer, models.GraderTypePeer)
	fresh.State = models.StateBeingGraded
	env.seed(t, &fresh)

	report, err := reaper.RunSweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.TimedOutReset)
	require.Equal(t, models.StateWaitingToBeGraded, env.reload(t, stalled.ID).State)
	require.Equal(t, models.StateBeingGraded, env.reload(t, fresh.ID).State)

	// A second pass finds the precondition gone and does nothing.
	report, err = reaper.RunSweep(ctx)
	require.NoError(t, err)
	require.Zero(t, report.TimedOutReset)
}

func TestSweepFinalizesExpiredWithSyntheticFailure(t *testing.T) {
	env := newTestEnv(t)
	events := &capturePublisher{}
	reaper := newReaperForTest(env, testPolicy(), events)
	ctx := context.Background()

	expired := waitingSubmission("loc-a", "alice", models.GraderTypeML, models.GraderTypeInstructor)
	env.seed(t, &expired)
	env.backdate(t, expired.ID, 48*time.Hour)

	report, err := reaper.RunSweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Expired)

	finished := env.reload(t, expired.ID)
	require.Equal(t, models.StateFinished, finished.State)
	require.Equal(t, models.GraderTypeInstructor, finished.PreviousGraderType,
		"expiration records the pool that never picked it up")

	grades, err := env.grades.ListBySubmission(ctx, expired.ID)
	require.NoError(t, err)
	require.Len(t, grades, 1)
	require.Equal(t, models.GradeStatusFailure, grades[0].Status)
	require.Equal(t, "0", grades[0].GraderID)
	require.Zero(t, grades[0].Score)
	require.Equal(t, float64(1), grades[0].Confidence)
	require.NotEmpty(t, grades[0].Feedback)

	require.Contains(t, events.finished, expired.ID,
		"expiration still notifies the post-back worker")
}

func TestSweepResubmitsBasicCheckStragglers(t *testing.T) {
	env := newTestEnv(t)
	events := &capturePublisher{}
	reaper := newReaperForTest(env, testPolicy(), events)
	ctx := context.Background()

	stuck := waitingSubmission("loc-a", "alice", models.GraderTypePeer, models.GraderTypeBasicCheck)
	env.seed(t, &stuck)

	failed := waitingSubmission("loc-a", "bob", models.GraderTypePeer, models.GraderTypePeer)
	env.seed(t, &failed)
	env.addGrade(t, failed.ID, models.GraderTypeBasicCheck, "checker", models.GradeStatusFailure)

	report, err := reaper.RunSweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.BasicCheckResubmitted)
	require.Equal(t, 1, report.FailedBasicCheckResubmitted)
	require.Contains(t, events.resubmits, stuck.ID)
	require.Contains(t, events.resubmits, failed.ID)
}

func TestSweepRunsRoutingAndDuplicateSweeps(t *testing.T) {
	env := newTestEnv(t)
	events := &capturePublisher{}
	reaper := newReaperForTest(env, testPolicy(), events)
	ctx := context.Background()

	// Three ML-routed submissions at a location with no staff coverage.
	for _, student := range []string{"alice", "bob", "carol"} {
		submission := waitingSubmission("loc-a", student, models.GraderTypeML, models.GraderTypeML)
		env.seed(t, &submission)
	}

	// A finished canonical with an unfinished duplicate.
	canonical := waitingSubmission("loc-b", "dave", models.GraderTypePeer, models.GraderTypePeer)
	canonical.State = models.StateFinished
	canonical.PreviousGraderType = models.GraderTypePeer
	env.seed(t, &canonical)
	env.addGrade(t, canonical.ID, models.GraderTypePeer, "erin", models.GradeStatusSuccess)

	duplicate := waitingSubmission("loc-b", "frank", models.GraderTypePeer, models.GraderTypePeer)
	duplicate.IsDuplicate = true
	duplicate.DuplicateSubmissionID = &canonical.ID
	env.seed(t, &duplicate)

	report, err := reaper.RunSweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.ReclaimedToStaff)
	require.Equal(t, 1, report.DuplicatesFinalized)
	require.Equal(t, models.StateFinished, env.reload(t, duplicate.ID).State)
	require.Contains(t, events.finished, duplicate.ID)
}
