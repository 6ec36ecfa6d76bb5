package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/grading-core/internal/dto"
	"github.com/noah-isme/grading-core/internal/models"
	"github.com/noah-isme/grading-core/internal/repository"
)

// IntakeService creates submissions on behalf of the external queue puller.
type IntakeService interface {
	Intake(ctx context.Context, payload dto.IntakeRequest) (uint, error)
}

type intakeService struct {
	submissions repository.SubmissionRepository
	profiles    repository.ProfileRepository
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewIntakeService constructs the intake service.
func NewIntakeService(submissions repository.SubmissionRepository, profiles repository.ProfileRepository, validate *validator.Validate, logger zerolog.Logger) IntakeService {
	return &intakeService{
		submissions: submissions,
		profiles:    profiles,
		validator:   validate,
		logger:      logger.With().Str("component", "intake_service").Logger(),
	}
}

func (s *intakeService) Intake(ctx context.Context, payload dto.IntakeRequest) (uint, error) {
	if err := s.validator.Struct(payload); err != nil {
		return 0, err
	}

	submissionTime := payload.StudentSubmissionTime
	if submissionTime.IsZero() {
		submissionTime = time.Now()
	}

	submission := models.Submission{
		Location:              payload.Location,
		CourseID:              payload.CourseID,
		StudentID:             payload.StudentID,
		StudentResponse:       payload.StudentResponse,
		Prompt:                payload.Prompt,
		ProblemID:             payload.ProblemID,
		MaxScore:              payload.MaxScore,
		StudentSubmissionTime: submissionTime,
		PreferredGraderType:   payload.PreferredGraderType,
		// Every submission passes the basic pre-check before substantive
		// grading; the post-check grade routes it onward.
		NextGraderType: models.GraderTypeBasicCheck,
		State:          models.StateWaitingToBeGraded,
	}

	// Peer-preferred responses identical to an earlier one never get their
	// own grading cycle; the duplicate sweep copies the canonical grade.
	if payload.PreferredGraderType == models.GraderTypePeer {
		canonical, err := s.submissions.FindCanonical(ctx, payload.Location, payload.StudentResponse)
		if err != nil {
			return 0, err
		}
		if canonical != nil {
			submission.IsDuplicate = true
			submission.DuplicateSubmissionID = &canonical.ID
			submission.NextGraderType = models.GraderTypePeer
		}
	}

	if err := s.ensureProfile(ctx, payload.StudentID); err != nil {
		s.logger.Warn().Err(err).Str("student_id", payload.StudentID).Msg("failed to ensure student profile")
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return 0, err
	}

	s.logger.Debug().
		Uint("submission_id", submission.ID).
		Str("location", submission.Location).
		Bool("is_duplicate", submission.IsDuplicate).
		Msg("submission accepted")

	return submission.ID, nil
}

func (s *intakeService) ensureProfile(ctx context.Context, studentID string) error {
	_, err := s.profiles.GetByStudent(ctx, studentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return s.profiles.Create(ctx, &models.StudentProfile{StudentID: studentID})
}
