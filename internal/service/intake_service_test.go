package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grading-core/internal/dto"
	"github.com/noah-isme/grading-core/internal/models"
)

func newIntakeForTest(env testEnv) IntakeService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewIntakeService(env.submissions, env.profiles, validate, nopLogger())
}

func TestIntakeCreatesWaitingSubmissionBehindBasicCheck(t *testing.T) {
	env := newTestEnv(t)
	intake := newIntakeForTest(env)
	ctx := context.Background()

	id, err := intake.Intake(ctx, dto.IntakeRequest{
		Location:            "loc-a",
		CourseID:            "course-1",
		StudentID:           "alice",
		StudentResponse:     "my essay",
		PreferredGraderType: models.GraderTypeML,
		MaxScore:            10,
	})
	require.NoError(t, err)

	submission := env.reload(t, id)
	require.Equal(t, models.StateWaitingToBeGraded, submission.State)
	require.Equal(t, models.GraderTypeBasicCheck, submission.NextGraderType)
	require.Equal(t, models.GraderTypeML, submission.PreferredGraderType)
	require.False(t, submission.StudentSubmissionTime.IsZero())

	profile, err := env.profiles.GetByStudent(ctx, "alice")
	require.NoError(t, err)
	require.False(t, profile.PeerGradingBanned)
}

func TestIntakeMarksPeerDuplicates(t *testing.T) {
	env := newTestEnv(t)
	intake := newIntakeForTest(env)
	ctx := context.Background()

	originalID, err := intake.Intake(ctx, dto.IntakeRequest{
		Location:            "loc-a",
		CourseID:            "course-1",
		StudentID:           "alice",
		StudentResponse:     "identical text",
		PreferredGraderType: models.GraderTypePeer,
	})
	require.NoError(t, err)

	duplicateID, err := intake.Intake(ctx, dto.IntakeRequest{
		Location:            "loc-a",
		CourseID:            "course-1",
		StudentID:           "bob",
		StudentResponse:     "identical text",
		PreferredGraderType: models.GraderTypePeer,
	})
	require.NoError(t, err)

	duplicate := env.reload(t, duplicateID)
	require.True(t, duplicate.IsDuplicate)
	require.NotNil(t, duplicate.DuplicateSubmissionID)
	require.Equal(t, originalID, *duplicate.DuplicateSubmissionID)
	require.Equal(t, models.GraderTypePeer, duplicate.NextGraderType,
		"duplicates skip the basic check and wait for propagation")

	require.False(t, env.reload(t, originalID).IsDuplicate)
}

func TestIntakeIgnoresDuplicateTextAcrossPools(t *testing.T) {
	env := newTestEnv(t)
	intake := newIntakeForTest(env)
	ctx := context.Background()

	_, err := intake.Intake(ctx, dto.IntakeRequest{
		Location:            "loc-a",
		CourseID:            "course-1",
		StudentID:           "alice",
		StudentResponse:     "identical text",
		PreferredGraderType: models.GraderTypeML,
	})
	require.NoError(t, err)

	id, err := intake.Intake(ctx, dto.IntakeRequest{
		Location:            "loc-a",
		CourseID:            "course-1",
		StudentID:           "bob",
		StudentResponse:     "identical text",
		PreferredGraderType: models.GraderTypeML,
	})
	require.NoError(t, err)

	require.False(t, env.reload(t, id).IsDuplicate,
		"duplicate detection only applies to peer-graded problems")
}

func TestIntakeValidatesPayload(t *testing.T) {
	env := newTestEnv(t)
	intake := newIntakeForTest(env)

	_, err := intake.Intake(context.Background(), dto.IntakeRequest{
		Location:  "loc-a",
		CourseID:  "course-1",
		StudentID: "alice",
		// missing response and preferred grader
	})
	require.Error(t, err)

	_, err = intake.Intake(context.Background(), dto.IntakeRequest{
		Location:            "loc-a",
		CourseID:            "course-1",
		StudentID:           "alice",
		StudentResponse:     "essay",
		PreferredGraderType: models.GraderTypeBasicCheck,
	})
	require.Error(t, err, "basic check is never a preferred pool")
}
