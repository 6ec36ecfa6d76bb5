package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grading-core/internal/models"
)

func newNotificationsForTest(env testEnv, policy Policy) NotificationService {
	return NewNotificationService(env.submissions, env.grades, policy, nopLogger())
}

func TestPeerGradingPendingTracksOwedGrades(t *testing.T) {
	env := newTestEnv(t)
	notifications := newNotificationsForTest(env, testPolicy())
	ctx := context.Background()

	// Alice submitted a peer-graded response, so she owes one peer grade.
	own := waitingSubmission("loc-a", "alice", models.GraderTypePeer, models.GraderTypePeer)
	env.seed(t, &own)

	// Someone else's work is waiting for a grader.
	other := waitingSubmission("loc-a", "bob", models.GraderTypePeer, models.GraderTypePeer)
	env.seed(t, &other)

	pending, err := notifications.PeerGradingPending(ctx, "alice", "course-1")
	require.NoError(t, err)
	require.True(t, pending)

	// Once alice has graded her share, nothing is owed.
	env.addGrade(t, other.ID, models.GraderTypePeer, "alice", models.GradeStatusSuccess)

	pending, err = notifications.PeerGradingPending(ctx, "alice", "course-1")
	require.NoError(t, err)
	require.False(t, pending)
}

func TestPeerGradingNotPendingWithoutAvailableWork(t *testing.T) {
	env := newTestEnv(t)
	notifications := newNotificationsForTest(env, testPolicy())
	ctx := context.Background()

	own := waitingSubmission("loc-a", "alice", models.GraderTypePeer, models.GraderTypePeer)
	env.seed(t, &own)

	// Only alice's own submission exists, so there is nothing she could grade.
	pending, err := notifications.PeerGradingPending(ctx, "alice", "course-1")
	require.NoError(t, err)
	require.False(t, pending)
}

func TestStaffGradingPendingBelowMinimum(t *testing.T) {
	env := newTestEnv(t)
	notifications := newNotificationsForTest(env, testPolicy())
	ctx := context.Background()

	waiting := waitingSubmission("loc-a", "alice", models.GraderTypePeer, models.GraderTypeInstructor)
	env.seed(t, &waiting)

	pending, err := notifications.StaffGradingPending(ctx, "course-1")
	require.NoError(t, err)
	require.True(t, pending, "no staff-graded submissions yet, work is waiting")

	// Cover the minimum and the location stops asking for staff.
	for _, student := range []string{"bob", "carol"} {
		graded := waitingSubmission("loc-a", student, models.GraderTypePeer, models.GraderTypePeer)
		graded.State = models.StateFinished
		graded.PreviousGraderType = models.GraderTypeInstructor
		env.seed(t, &graded)
	}

	pending, err = notifications.StaffGradingPending(ctx, "course-1")
	require.NoError(t, err)
	require.False(t, pending)
}
