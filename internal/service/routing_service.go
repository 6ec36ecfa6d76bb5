package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/grading-core/internal/models"
	"github.com/noah-isme/grading-core/internal/repository"
)

// RoutingService decides which grader pool should see a submission next.
// All decisions degrade to "leave the submission where it is" when the
// underlying state cannot be queried.
type RoutingService interface {
	// MLEligible reports whether automated grading is trusted for a
	// location: enough staff-labeled submissions exist and a model is ready.
	MLEligible(ctx context.Context, location string) (bool, error)
	// RouteAfterBasicCheck picks the pool a submission enters once it passes
	// the basic pre-check.
	RouteAfterBasicCheck(submission models.Submission) string
	// AdvanceAfterGrade re-routes a submission after a grade record lands.
	// The submission is mutated to reflect the committed routing.
	AdvanceAfterGrade(ctx context.Context, submission *models.Submission, grade *models.GradeRecord) error
	// ReclaimToStaff pulls ML-preferred pending submissions back to staff
	// routing for locations still short of the staff-labeled minimum.
	ReclaimToStaff(ctx context.Context) (int, error)
	// PromoteToML returns staff-parked ML-preferred submissions to automated
	// routing once a usable model exists for their location.
	PromoteToML(ctx context.Context) (int, error)
}

type routingService struct {
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	mlModels    repository.ModelRepository
	policy      Policy
	logger      zerolog.Logger
}

// NewRoutingService constructs the routing policy engine.
func NewRoutingService(submissions repository.SubmissionRepository, grades repository.GradeRepository, mlModels repository.ModelRepository, policy Policy, logger zerolog.Logger) RoutingService {
	return &routingService{
		submissions: submissions,
		grades:      grades,
		mlModels:    mlModels,
		policy:      policy,
		logger:      logger.With().Str("component", "routing_service").Logger(),
	}
}

var pendingStaffStates = []string{models.StateWaitingToBeGraded, models.StateBeingGraded}

func (s *routingService) MLEligible(ctx context.Context, location string) (bool, error) {
	graded, err := s.submissions.StaffGradedCount(ctx, location)
	if err != nil {
		return false, err
	}

	pending, err := s.submissions.StaffPendingCount(ctx, location, pendingStaffStates)
	if err != nil {
		return false, err
	}

	if graded+pending < int64(s.policy.MinStaffBeforeML) {
		return false, nil
	}

	return s.mlModels.Ready(ctx, location)
}

func (s *routingService) RouteAfterBasicCheck(submission models.Submission) string {
	switch submission.PreferredGraderType {
	case models.GraderTypePeer:
		return models.GraderTypePeer
	case models.GraderTypeML:
		return models.GraderTypeML
	default:
		return models.GraderTypeInstructor
	}
}

func (s *routingService) AdvanceAfterGrade(ctx context.Context, submission *models.Submission, grade *models.GradeRecord) error {
	update, err := s.routingAfterGrade(ctx, *submission, *grade)
	if err != nil {
		return err
	}

	ok, err := s.submissions.ApplyRouting(ctx, submission.ID, submission.State, update)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStateConflict
	}

	submission.State = update.State
	if update.NextGraderType != nil {
		submission.NextGraderType = *update.NextGraderType
	}
	if update.PreviousGraderType != nil {
		submission.PreviousGraderType = *update.PreviousGraderType
	}

	return nil
}

func (s *routingService) routingAfterGrade(ctx context.Context, submission models.Submission, grade models.GradeRecord) (repository.RoutingUpdate, error) {
	if grade.Status == models.GradeStatusSuccess {
		switch grade.GraderType {
		case models.GraderTypeInstructor, models.GraderTypeML:
			return finishUpdate(grade.GraderType), nil
		case models.GraderTypeBasicCheck:
			next := s.RouteAfterBasicCheck(submission)
			return waitUpdate(next, strPtr(models.GraderTypeBasicCheck)), nil
		case models.GraderTypePeer:
			count, err := s.grades.CountSuccessfulPeer(ctx, submission.ID)
			if err != nil {
				return repository.RoutingUpdate{}, err
			}
			if count >= int64(s.policy.PeerGradersRequired) {
				return finishUpdate(models.GraderTypePeer), nil
			}
			return waitUpdate(models.GraderTypePeer, nil), nil
		}
		return repository.RoutingUpdate{}, ErrInvalidInput
	}

	switch grade.GraderType {
	case models.GraderTypeML:
		// Failed automated grading always falls back to staff.
		return waitUpdate(models.GraderTypeInstructor, nil), nil
	case models.GraderTypeInstructor:
		// Instructor skipped; hand back to ML when a model can take over.
		if submission.PreferredGraderType == models.GraderTypeML {
			ready, err := s.mlModels.Ready(ctx, submission.Location)
			if err != nil {
				return repository.RoutingUpdate{}, err
			}
			if ready {
				return waitUpdate(models.GraderTypeML, nil), nil
			}
		}
		return waitUpdate(models.GraderTypeInstructor, nil), nil
	case models.GraderTypeBasicCheck:
		return waitUpdate(models.GraderTypeBasicCheck, nil), nil
	case models.GraderTypePeer:
		return waitUpdate(models.GraderTypePeer, nil), nil
	}

	return repository.RoutingUpdate{}, ErrInvalidInput
}

func (s *routingService) ReclaimToStaff(ctx context.Context) (int, error) {
	locations, err := s.submissions.DistinctLocations(ctx)
	if err != nil {
		return 0, err
	}

	counter := 0
	for _, location := range locations {
		graded, err := s.submissions.StaffGradedCount(ctx, location)
		if err != nil {
			s.logger.Warn().Err(err).Str("location", location).Msg("skipping location during staff reclaim")
			continue
		}
		pending, err := s.submissions.StaffPendingCount(ctx, location, pendingStaffStates)
		if err != nil {
			s.logger.Warn().Err(err).Str("location", location).Msg("skipping location during staff reclaim")
			continue
		}

		candidates, err := s.submissions.MLPreferredPendingNewest(ctx, location, s.policy.MinStaffBeforeML)
		if err != nil {
			s.logger.Warn().Err(err).Str("location", location).Msg("skipping location during staff reclaim")
			continue
		}

		if graded+pending >= int64(s.policy.MinStaffBeforeML) || int64(len(candidates)) <= pending {
			continue
		}

		for _, candidate := range candidates {
			if candidate.NextGraderType == models.GraderTypeML {
				failed, err := s.grades.HasFailures(ctx, candidate.ID)
				if err != nil {
					continue
				}
				if !failed {
					ok, err := s.submissions.UpdateRouting(ctx, candidate.ID, models.GraderTypeInstructor)
					if err != nil {
						continue
					}
					if ok {
						counter++
					}
				}
			}
			if int64(counter)+graded+pending > int64(s.policy.MinStaffBeforeML) {
				break
			}
		}
	}

	if counter > 0 {
		s.logger.Debug().Int("count", counter).Msg("reclaimed ML submissions to staff routing")
	}

	return counter, nil
}

func (s *routingService) PromoteToML(ctx context.Context) (int, error) {
	parked, err := s.submissions.StaffParkedMLPreferred(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, submission := range parked {
		ready, err := s.mlModels.Ready(ctx, submission.Location)
		if err != nil || !ready {
			continue
		}
		ok, err := s.submissions.UpdateRouting(ctx, submission.ID, models.GraderTypeML)
		if err != nil {
			continue
		}
		if ok {
			count++
		}
	}

	if count > 0 {
		s.logger.Debug().Int("count", count).Msg("promoted staff-parked submissions back to ML routing")
	}

	return count, nil
}

func finishUpdate(previous string) repository.RoutingUpdate {
	return repository.RoutingUpdate{
		State:              models.StateFinished,
		PreviousGraderType: strPtr(previous),
	}
}

func waitUpdate(next string, previous *string) repository.RoutingUpdate {
	return repository.RoutingUpdate{
		State:              models.StateWaitingToBeGraded,
		NextGraderType:     strPtr(next),
		PreviousGraderType: previous,
	}
}

func strPtr(value string) *string {
	return &value
}
