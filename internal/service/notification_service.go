package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/grading-core/internal/models"
	"github.com/noah-isme/grading-core/internal/repository"
)

// NotificationService answers the query surface external dashboards poll.
type NotificationService interface {
	// PeerGradingPending reports whether the student still owes peer grading
	// for any of their own peer-graded problems in the course.
	PeerGradingPending(ctx context.Context, studentID, courseID string) (bool, error)
	// StaffGradingPending reports whether any course location is still short
	// of its staff-graded minimum while submissions wait.
	StaffGradingPending(ctx context.Context, courseID string) (bool, error)
}

type notificationService struct {
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	policy      Policy
	logger      zerolog.Logger
}

// NewNotificationService constructs the notification query service.
func NewNotificationService(submissions repository.SubmissionRepository, grades repository.GradeRepository, policy Policy, logger zerolog.Logger) NotificationService {
	return &notificationService{
		submissions: submissions,
		grades:      grades,
		policy:      policy,
		logger:      logger.With().Str("component", "notification_service").Logger(),
	}
}

func (s *notificationService) PeerGradingPending(ctx context.Context, studentID, courseID string) (bool, error) {
	locations, err := s.submissions.DistinctLocationsForStudent(ctx, studentID, courseID, models.GraderTypePeer)
	if err != nil {
		return false, err
	}

	for _, location := range locations {
		responses, err := s.submissions.CountStudentResponsesForLocation(ctx, studentID, location, models.GraderTypePeer)
		if err != nil {
			return false, err
		}
		required := responses * int64(s.policy.RequiredPeerGradingPerStudent)

		completed, err := s.grades.CountByGraderForLocation(ctx, studentID, location)
		if err != nil {
			return false, err
		}

		pending, err := s.submissions.CountPeerPendingForLocation(ctx, location, studentID)
		if err != nil {
			return false, err
		}

		if completed < required && pending > 0 {
			return true, nil
		}
	}

	return false, nil
}

func (s *notificationService) StaffGradingPending(ctx context.Context, courseID string) (bool, error) {
	locations, err := s.submissions.DistinctLocationsForCourse(ctx, courseID)
	if err != nil {
		return false, err
	}

	for _, location := range locations {
		minScored := int64(s.policy.MinToUsePeer)
		mlCount, err := s.submissions.CountPreferredForLocation(ctx, location, models.GraderTypeML)
		if err != nil {
			return false, err
		}
		if mlCount > 0 {
			minScored = int64(s.policy.MinStaffBeforeML)
		}

		scored, err := s.submissions.StaffGradedCount(ctx, location)
		if err != nil {
			return false, err
		}

		pending, err := s.submissions.PendingCountForLocation(ctx, location)
		if err != nil {
			return false, err
		}

		if scored < minScored && pending > 0 {
			return true, nil
		}
	}

	return false, nil
}
