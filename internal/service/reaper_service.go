package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/grading-core/internal/models"
	"github.com/noah-isme/grading-core/internal/observability"
	"github.com/noah-isme/grading-core/internal/repository"
)

const expiredFeedback = "There was an error with your submission. Please contact the course staff."

// SweepReport counts what one reaper pass did. A zero report is a valid,
// silent outcome.
type SweepReport struct {
	TimedOutReset               int
	Expired                     int
	BasicCheckResubmitted       int
	FailedBasicCheckResubmitted int
	ReclaimedToStaff            int
	PromotedToML                int
	DuplicatesFinalized         int
}

// ReaperService reclaims stalled, timed-out, and orphaned submissions. Every
// sweep only acts on rows still matching its precondition at write time, so
// running it concurrently with selection and grading is safe.
type ReaperService interface {
	RunSweep(ctx context.Context) (SweepReport, error)
	// Run drives RunSweep on a fixed interval until the context is done.
	Run(ctx context.Context, interval time.Duration)
}

type reaperService struct {
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	routing     RoutingService
	duplicates  DuplicateService
	events      EventPublisher
	policy      Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewReaperService constructs the lifecycle reaper.
func NewReaperService(
	submissions repository.SubmissionRepository,
	grades repository.GradeRepository,
	routing RoutingService,
	duplicates DuplicateService,
	events EventPublisher,
	policy Policy,
	logger zerolog.Logger,
) ReaperService {
	if events == nil {
		events = NewNopPublisher()
	}

	return &reaperService{
		submissions: submissions,
		grades:      grades,
		routing:     routing,
		duplicates:  duplicates,
		events:      events,
		policy:      policy,
		logger:      logger.With().Str("component", "reaper_service").Logger(),
		now:         time.Now,
	}
}

func (s *reaperService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunSweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("reaper sweep failed")
			}
		}
	}
}

func (s *reaperService) RunSweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{}

	count, err := s.resetTimedOut(ctx)
	if err != nil {
		return report, err
	}
	report.TimedOutReset = count

	count, err = s.finalizeExpired(ctx)
	if err != nil {
		return report, err
	}
	report.Expired = count

	count, err = s.resubmitStuckBasicCheck(ctx)
	if err != nil {
		return report, err
	}
	report.BasicCheckResubmitted = count

	count, err = s.resubmitFailedBasicCheck(ctx)
	if err != nil {
		return report, err
	}
	report.FailedBasicCheckResubmitted = count

	count, err = s.routing.ReclaimToStaff(ctx)
	if err != nil {
		return report, err
	}
	report.ReclaimedToStaff = count
	observability.ReaperActions().WithLabelValues("reclaim_to_staff").Add(float64(count))

	count, err = s.routing.PromoteToML(ctx)
	if err != nil {
		return report, err
	}
	report.PromotedToML = count
	observability.ReaperActions().WithLabelValues("promote_to_ml").Add(float64(count))

	count, err = s.duplicates.RunSweep(ctx)
	if err != nil {
		return report, err
	}
	report.DuplicatesFinalized = count
	observability.ReaperActions().WithLabelValues("duplicate_propagation").Add(float64(count))

	s.logger.Debug().
		Int("timed_out_reset", report.TimedOutReset).
		Int("expired", report.Expired).
		Int("basic_check_resubmitted", report.BasicCheckResubmitted).
		Int("failed_basic_check_resubmitted", report.FailedBasicCheckResubmitted).
		Int("reclaimed_to_staff", report.ReclaimedToStaff).
		Int("promoted_to_ml", report.PromotedToML).
		Int("duplicates_finalized", report.DuplicatesFinalized).
		Msg("reaper sweep completed")

	return report, nil
}

// resetTimedOut returns checked-out submissions whose grader went quiet back
// to the waiting pool. The conditional transition makes a second pass a
// no-op: once reset, the row no longer matches being_graded.
func (s *reaperService) resetTimedOut(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.policy.StallTimeout)
	stalled, err := s.submissions.StalledBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, submission := range stalled {
		ok, err := s.submissions.TransitionState(ctx, submission.ID, models.StateBeingGraded, models.StateWaitingToBeGraded)
		if err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to reset timed out submission")
			continue
		}
		if ok {
			count++
		}
	}

	observability.ReaperActions().WithLabelValues("stall_reset").Add(float64(count))
	if count > 0 {
		s.logger.Debug().Int("count", count).Msg("reset submissions that timed out in their current grader")
	}

	return count, nil
}

// finalizeExpired force-finishes submissions nothing ever claimed, attaching
// a synthetic failing grade. Finalization always proceeds even when the
// grade record cannot be written; liveness beats record fidelity here.
func (s *reaperService) finalizeExpired(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.policy.ExpireAfter)
	expired, err := s.submissions.ExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, submission := range expired {
		ok, err := s.submissions.ApplyRouting(ctx, submission.ID, models.StateWaitingToBeGraded, repository.RoutingUpdate{
			State:              models.StateFinished,
			PreviousGraderType: strPtr(submission.NextGraderType),
		})
		if err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to finalize expired submission")
			continue
		}
		if !ok {
			continue
		}

		grade := models.GradeRecord{
			SubmissionID: submission.ID,
			GraderType:   submission.NextGraderType,
			GraderID:     "0",
			Status:       models.GradeStatusFailure,
			Score:        0,
			Confidence:   1,
			Feedback:     expiredFeedback,
		}
		if err := s.grades.Create(ctx, &grade); err != nil {
			s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to attach synthetic failure grade")
		}

		submission.State = models.StateFinished
		if err := s.events.PublishFinished(ctx, submission); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to publish finished event for expired submission")
		}

		count++
		observability.SubmissionsExpired().Inc()
	}

	observability.ReaperActions().WithLabelValues("hard_expiration").Add(float64(count))
	if count > 0 {
		s.logger.Debug().Int("count", count).Msg("finalized expired submissions")
	}

	return count, nil
}

func (s *reaperService) resubmitStuckBasicCheck(ctx context.Context) (int, error) {
	stuck, err := s.submissions.StuckInBasicCheck(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, submission := range stuck {
		if err := s.events.PublishResubmit(ctx, submission); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to resubmit basic check submission")
			continue
		}
		count++
	}

	observability.ReaperActions().WithLabelValues("basic_check_recovery").Add(float64(count))
	if count > 0 {
		s.logger.Debug().Int("count", count).Msg("resubmitted submissions stuck in basic check")
	}

	return count, nil
}

func (s *reaperService) resubmitFailedBasicCheck(ctx context.Context) (int, error) {
	failed, err := s.submissions.FailedBasicCheck(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, submission := range failed {
		if err := s.events.PublishResubmit(ctx, submission); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to resubmit failed basic check submission")
			continue
		}
		count++
	}

	observability.ReaperActions().WithLabelValues("failed_basic_check_recovery").Add(float64(count))
	if count > 0 {
		s.logger.Debug().Int("count", count).Msg("resubmitted submissions that failed basic check")
	}

	return count, nil
}
