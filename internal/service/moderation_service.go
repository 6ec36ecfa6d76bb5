package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/grading-core/internal/dto"
	"github.com/noah-isme/grading-core/internal/models"
	"github.com/noah-isme/grading-core/internal/repository"
)

// FlagAction is the closed set of moderation actions on flagged submissions.
type FlagAction string

const (
	// ActionBan bans the submitting student from peer grading and finishes
	// the flagged submission.
	ActionBan FlagAction = "ban"
	// ActionUnflag recomputes the correct state for the submission.
	ActionUnflag FlagAction = "unflag"
)

// ParseFlagAction validates an action name.
func ParseFlagAction(value string) (FlagAction, error) {
	switch FlagAction(value) {
	case ActionBan:
		return ActionBan, nil
	case ActionUnflag:
		return ActionUnflag, nil
	}
	return "", ErrInvalidAction
}

// ModerationService handles flagging and flag resolution.
type ModerationService interface {
	Flag(ctx context.Context, submissionID uint) error
	TakeAction(ctx context.Context, action FlagAction, submissionID uint) error
	FlaggedSubmissions(ctx context.Context, courseID string) ([]dto.FlaggedSubmission, error)
}

type moderationService struct {
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	profiles    repository.ProfileRepository
	routing     RoutingService
	policy      Policy
	logger      zerolog.Logger
}

// NewModerationService constructs the moderation service.
func NewModerationService(
	submissions repository.SubmissionRepository,
	grades repository.GradeRepository,
	profiles repository.ProfileRepository,
	routing RoutingService,
	policy Policy,
	logger zerolog.Logger,
) ModerationService {
	return &moderationService{
		submissions: submissions,
		grades:      grades,
		profiles:    profiles,
		routing:     routing,
		policy:      policy,
		logger:      logger.With().Str("component", "moderation_service").Logger(),
	}
}

func (s *moderationService) Flag(ctx context.Context, submissionID uint) error {
	submission, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return err
	}

	if submission.IsTerminal() || submission.State == models.StateFlagged {
		return ErrStateConflict
	}

	ok, err := s.submissions.TransitionState(ctx, submission.ID, submission.State, models.StateFlagged)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStateConflict
	}

	return nil
}

func (s *moderationService) TakeAction(ctx context.Context, action FlagAction, submissionID uint) error {
	submission, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return err
	}

	if submission.State != models.StateFlagged {
		return ErrStateConflict
	}

	switch action {
	case ActionBan:
		return s.banStudent(ctx, submission)
	case ActionUnflag:
		return s.unflag(ctx, submission)
	default:
		return ErrInvalidAction
	}
}

func (s *moderationService) banStudent(ctx context.Context, submission models.Submission) error {
	if err := s.profiles.SetBanned(ctx, submission.StudentID, true); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProfileNotFound
		}
		return err
	}

	ok, err := s.submissions.TransitionState(ctx, submission.ID, models.StateFlagged, models.StateFinished)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStateConflict
	}

	s.logger.Info().
		Str("student_id", submission.StudentID).
		Uint("submission_id", submission.ID).
		Msg("student banned from peer grading")

	return nil
}

func (s *moderationService) unflag(ctx context.Context, submission models.Submission) error {
	update := repository.RoutingUpdate{
		State:          models.StateWaitingToBeGraded,
		NextGraderType: strPtr(submission.PreferredGraderType),
	}

	if submission.PreferredGraderType == models.GraderTypePeer {
		count, err := s.grades.CountSuccessfulPeer(ctx, submission.ID)
		if err != nil {
			return err
		}
		if count >= int64(s.policy.PeerGradersRequired) {
			update = repository.RoutingUpdate{State: models.StateFinished}
		} else {
			update.NextGraderType = strPtr(models.GraderTypePeer)
		}
	}

	ok, err := s.submissions.ApplyRouting(ctx, submission.ID, models.StateFlagged, update)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStateConflict
	}

	return nil
}

func (s *moderationService) FlaggedSubmissions(ctx context.Context, courseID string) ([]dto.FlaggedSubmission, error) {
	flagged, err := s.submissions.FlaggedForCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	result := make([]dto.FlaggedSubmission, len(flagged))
	for i, submission := range flagged {
		result[i] = dto.NewFlaggedSubmission(submission)
	}

	return result, nil
}

func (s *moderationService) getSubmission(ctx context.Context, submissionID uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	return submission, nil
}
