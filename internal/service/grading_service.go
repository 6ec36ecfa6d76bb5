package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/grading-core/internal/dto"
	"github.com/noah-isme/grading-core/internal/models"
	"github.com/noah-isme/grading-core/internal/observability"
	"github.com/noah-isme/grading-core/internal/repository"
)

// GradingService appends grade records and advances routing afterwards.
type GradingService interface {
	PostGrade(ctx context.Context, submissionID uint, payload dto.GradeRequest) (models.Submission, error)
	// MarkPostedBack records that the final grade reached the external
	// queue; only legal once the submission is finished.
	MarkPostedBack(ctx context.Context, submissionID uint) error
}

type gradingService struct {
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	timings     repository.TimingRepository
	routing     RoutingService
	events      EventPublisher
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewGradingService constructs the grading service.
func NewGradingService(
	submissions repository.SubmissionRepository,
	grades repository.GradeRepository,
	timings repository.TimingRepository,
	routing RoutingService,
	events EventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) GradingService {
	if events == nil {
		events = NewNopPublisher()
	}

	return &gradingService{
		submissions: submissions,
		grades:      grades,
		timings:     timings,
		routing:     routing,
		events:      events,
		validator:   validate,
		sanitizer:   bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/grading-core/internal/service/grading"),
	}
}

func (s *gradingService) PostGrade(ctx context.Context, submissionID uint, payload dto.GradeRequest) (models.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "grading.post_grade", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.String("grading.grader_type", payload.GraderType),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return models.Submission{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		span.RecordError(err)
		return models.Submission{}, err
	}

	// Grades land against checked-out or still-pending submissions. A
	// finished or flagged submission lost the race to someone else.
	if submission.State != models.StateBeingGraded && submission.State != models.StateWaitingToBeGraded {
		return models.Submission{}, ErrStateConflict
	}

	grade := models.GradeRecord{
		SubmissionID: submission.ID,
		GraderType:   payload.GraderType,
		GraderID:     payload.GraderID,
		Status:       payload.Status,
		Score:        payload.Score,
		Confidence:   payload.Confidence,
		Feedback:     strings.TrimSpace(s.sanitizer.Sanitize(payload.Feedback)),
		Rubrics:      rubricsFromRequest(payload.Rubrics),
	}

	if err := s.grades.Create(ctx, &grade); err != nil {
		span.RecordError(err)
		return models.Submission{}, err
	}

	if err := s.timings.FinishLatest(ctx, submission.ID); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to finish timing record")
	}

	if err := s.routing.AdvanceAfterGrade(ctx, &submission, &grade); err != nil {
		span.RecordError(err)
		return models.Submission{}, err
	}

	observability.GradesPosted().WithLabelValues(grade.GraderType, grade.Status).Inc()

	if submission.State == models.StateFinished {
		if err := s.events.PublishFinished(ctx, submission); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to publish finished event")
		}
	}

	span.SetAttributes(attribute.String("grading.resulting_state", submission.State))
	return submission, nil
}

func (s *gradingService) MarkPostedBack(ctx context.Context, submissionID uint) error {
	ok, err := s.submissions.MarkPostedBack(ctx, submissionID)
	if err != nil {
		return err
	}
	if !ok {
		submission, getErr := s.submissions.GetByID(ctx, submissionID)
		if getErr != nil {
			if errors.Is(getErr, gorm.ErrRecordNotFound) {
				return ErrSubmissionNotFound
			}
			return getErr
		}
		if submission.PostedResultsBackToQueue {
			// Already delivered; idempotent.
			return nil
		}
		return ErrStateConflict
	}

	return nil
}

func rubricsFromRequest(requests []dto.RubricRequest) []models.Rubric {
	if len(requests) == 0 {
		return nil
	}

	rubrics := make([]models.Rubric, len(requests))
	for i, request := range requests {
		rubric := models.Rubric{
			FinalizedText: request.FinalizedText,
			FinishedScore: request.FinishedScore,
			Items:         make([]models.RubricItem, len(request.Items)),
		}
		for j, item := range request.Items {
			rubricItem := models.RubricItem{
				Text:     item.Text,
				Score:    item.Score,
				MaxScore: item.MaxScore,
				Options:  make([]models.RubricOption, len(item.Options)),
			}
			for k, option := range item.Options {
				rubricItem.Options[k] = models.RubricOption{
					Points:   option.Points,
					Text:     option.Text,
					Selected: option.Selected,
				}
			}
			rubric.Items[j] = rubricItem
		}
		rubrics[i] = rubric
	}

	return rubrics
}
