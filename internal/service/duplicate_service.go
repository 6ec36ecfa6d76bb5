package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/grading-core/internal/models"
	"github.com/noah-isme/grading-core/internal/repository"
)

// DuplicateService copies finalized grades from canonical submissions onto
// their duplicates. Each duplicate is handled in one transaction: either the
// whole rubric tree copies and the state flips, or neither happens.
type DuplicateService interface {
	RunSweep(ctx context.Context) (int, error)
}

type duplicateService struct {
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	events      EventPublisher
	logger      zerolog.Logger
}

// NewDuplicateService constructs the duplicate propagation sweep.
func NewDuplicateService(submissions repository.SubmissionRepository, grades repository.GradeRepository, events EventPublisher, logger zerolog.Logger) DuplicateService {
	if events == nil {
		events = NewNopPublisher()
	}

	return &duplicateService{
		submissions: submissions,
		grades:      grades,
		events:      events,
		logger:      logger.With().Str("component", "duplicate_service").Logger(),
	}
}

func (s *duplicateService) RunSweep(ctx context.Context) (int, error) {
	duplicates, err := s.submissions.UnfinishedDuplicates(ctx)
	if err != nil {
		return 0, err
	}

	counter := 0
	for _, duplicate := range duplicates {
		if duplicate.DuplicateSubmissionID == nil {
			s.logger.Warn().Uint("submission_id", duplicate.ID).Msg("duplicate without canonical reference")
			continue
		}

		original, err := s.submissions.GetByID(ctx, *duplicate.DuplicateSubmissionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Warn().
					Uint("submission_id", duplicate.ID).
					Uint("canonical_id", *duplicate.DuplicateSubmissionID).
					Msg("canonical submission missing for duplicate")
				continue
			}
			return counter, err
		}

		if original.State != models.StateFinished {
			continue
		}

		copied, err := s.grades.PropagateToDuplicate(ctx, original.ID, duplicate.ID)
		if err != nil {
			s.logger.Error().Err(err).
				Uint("submission_id", duplicate.ID).
				Uint("canonical_id", original.ID).
				Msg("failed to propagate duplicate grade")
			continue
		}
		if !copied {
			continue
		}

		counter++
		duplicate.State = models.StateFinished
		duplicate.PreviousGraderType = models.GraderTypePeer
		if err := s.events.PublishFinished(ctx, duplicate); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", duplicate.ID).Msg("failed to publish finished event for duplicate")
		}
		s.logger.Debug().
			Uint("canonical_id", original.ID).
			Uint("submission_id", duplicate.ID).
			Msg("finalized duplicate submission")
	}

	return counter, nil
}
