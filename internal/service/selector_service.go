package service

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/grading-core/internal/models"
	"github.com/noah-isme/grading-core/internal/observability"
	"github.com/noah-isme/grading-core/internal/repository"
)

// RequesterContext identifies who is asking for work.
type RequesterContext struct {
	GraderID string
	CourseID string
	Location string
}

// SelectorService atomically hands out one pending submission to a
// requesting grader-pool client. Selection and checkout are a single claim:
// candidates are re-verified by a conditional update, and the search retries
// on conflict, so two concurrent requesters never receive the same
// submission.
type SelectorService interface {
	SelectNext(ctx context.Context, pool string, requester RequesterContext) (uint, bool, error)
}

type selectorService struct {
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	profiles    repository.ProfileRepository
	timings     repository.TimingRepository
	routing     RoutingService
	similarity  SimilarityStore
	policy      Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewSelectorService constructs the work assignment selector.
func NewSelectorService(
	submissions repository.SubmissionRepository,
	grades repository.GradeRepository,
	profiles repository.ProfileRepository,
	timings repository.TimingRepository,
	routing RoutingService,
	similarity SimilarityStore,
	policy Policy,
	logger zerolog.Logger,
) SelectorService {
	if similarity == nil {
		similarity = NewNopSimilarityStore()
	}

	return &selectorService{
		submissions: submissions,
		grades:      grades,
		profiles:    profiles,
		timings:     timings,
		routing:     routing,
		similarity:  similarity,
		policy:      policy,
		logger:      logger.With().Str("component", "selector_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/grading-core/internal/service/selector"),
	}
}

func (s *selectorService) SelectNext(ctx context.Context, pool string, requester RequesterContext) (uint, bool, error) {
	ctx, span := s.tracer.Start(ctx, "selector.select_next", trace.WithAttributes(
		attribute.String("selector.pool", pool),
		attribute.String("selector.location", requester.Location),
	))
	defer span.End()

	var (
		id    uint
		found bool
		err   error
	)

	switch pool {
	case models.GraderTypeInstructor:
		id, found, err = s.selectForStaff(ctx, requester)
	case models.GraderTypePeer:
		id, found, err = s.selectForPeer(ctx, requester)
	case models.GraderTypeML:
		id, found, err = s.selectForML(ctx, requester)
	case models.GraderTypeBasicCheck:
		id, found, err = s.selectForBasicCheck(ctx, requester)
	default:
		return 0, false, ErrInvalidInput
	}

	if err != nil {
		span.RecordError(err)
		return 0, false, err
	}
	if found {
		observability.Checkouts().WithLabelValues(pool).Inc()
		span.SetAttributes(attribute.Int64("selector.submission_id", int64(id)))
	}

	return id, found, nil
}

// selectForStaff walks the requester's locations twice: first pending
// staff-routed submissions wherever automated grading is not yet trusted,
// then finished low-confidence ML submissions for review. Responses whose
// text staff already graded are skipped.
func (s *selectorService) selectForStaff(ctx context.Context, requester RequesterContext) (uint, bool, error) {
	locations, err := s.staffLocations(ctx, requester)
	if err != nil {
		return 0, false, err
	}

	for _, location := range locations {
		eligible, err := s.routing.MLEligible(ctx, location)
		if err != nil {
			s.logger.Warn().Err(err).Str("location", location).Msg("eligibility check failed, leaving location untouched")
			continue
		}
		if eligible {
			continue
		}

		id, found, err := s.claimPendingStaff(ctx, location, requester.GraderID)
		if err != nil {
			return 0, false, err
		}
		if found {
			return id, true, nil
		}
	}

	for _, location := range locations {
		id, found, err := s.claimLowConfidenceML(ctx, location, requester.GraderID)
		if err != nil {
			return 0, false, err
		}
		if found {
			return id, true, nil
		}
	}

	return 0, false, nil
}

func (s *selectorService) staffLocations(ctx context.Context, requester RequesterContext) ([]string, error) {
	if requester.Location != "" {
		return []string{requester.Location}, nil
	}

	return s.submissions.DistinctLocationsForCourse(ctx, requester.CourseID)
}

func (s *selectorService) claimPendingStaff(ctx context.Context, location, graderID string) (uint, bool, error) {
	gradedTexts, err := s.submissions.StaffGradedTexts(ctx, location)
	if err != nil {
		return 0, false, err
	}

	pending, err := s.submissions.PendingForPool(ctx, location, models.GraderTypeInstructor)
	if err != nil {
		return 0, false, err
	}

	for _, candidate := range pending {
		if containsText(gradedTexts, candidate.StudentResponse) {
			continue
		}
		ok, err := s.submissions.Claim(ctx, candidate.ID, models.StateWaitingToBeGraded, models.GraderTypeInstructor)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			observability.CheckoutConflicts().Inc()
			continue
		}
		s.startTiming(ctx, candidate.ID, graderID, models.GraderTypeInstructor)
		return candidate.ID, true, nil
	}

	return 0, false, nil
}

func (s *selectorService) claimLowConfidenceML(ctx context.Context, location, graderID string) (uint, bool, error) {
	gradedTexts, err := s.submissions.StaffGradedTexts(ctx, location)
	if err != nil {
		return 0, false, err
	}

	finished, err := s.submissions.LowConfidenceFinishedML(ctx, location)
	if err != nil {
		return 0, false, err
	}

	for _, candidate := range finished {
		if containsText(gradedTexts, candidate.StudentResponse) {
			continue
		}
		ok, err := s.submissions.Claim(ctx, candidate.ID, models.StateFinished, models.GraderTypeInstructor)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			observability.CheckoutConflicts().Inc()
			continue
		}
		s.startTiming(ctx, candidate.ID, graderID, models.GraderTypeInstructor)
		return candidate.ID, true, nil
	}

	return 0, false, nil
}

// selectForPeer ranks candidates by ascending successful-grade count over the
// oldest window, skips submissions the requester already graded, applies the
// similarity filter when a profile exists, and falls back to the first
// non-repeat candidate when nothing passes the filter.
func (s *selectorService) selectForPeer(ctx context.Context, requester RequesterContext) (uint, bool, error) {
	if s.policy.ExcludeBannedGraders {
		profile, err := s.profiles.GetByStudent(ctx, requester.GraderID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, err
		}
		if err == nil && profile.PeerGradingBanned {
			return 0, false, ErrGraderBanned
		}
	}

	candidates, err := s.submissions.PeerCandidates(ctx, requester.Location, requester.GraderID, s.policy.PeerSearchWindow)
	if err != nil {
		return 0, false, err
	}
	if len(candidates) == 0 {
		return 0, false, nil
	}

	// Load-balance: least-graded first, oldest among ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].NumGraders != candidates[j].NumGraders {
			return candidates[i].NumGraders < candidates[j].NumGraders
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	scores, hasProfile, err := s.similarity.Profile(ctx, requester.CourseID, requester.GraderID)
	if err != nil {
		s.logger.Warn().Err(err).Str("grader_id", requester.GraderID).Msg("similarity lookup failed, skipping filter")
		hasProfile = false
	}

	// Candidates the similarity filter rejects are kept aside in rank order;
	// they are only tried once the passing candidates are exhausted.
	var filtered []uint
	for i := range candidates {
		candidate := candidates[i]
		previousGraders, err := s.grades.SuccessfulPeerGraders(ctx, candidate.ID)
		if err != nil {
			return 0, false, err
		}
		if containsText(previousGraders, requester.GraderID) {
			continue
		}

		if hasProfile {
			score, known := scores[candidate.StudentID]
			if known && score > s.policy.SimilarityThreshold {
				filtered = append(filtered, candidate.ID)
				continue
			}
		}

		claimed, err := s.claimPeer(ctx, candidate.ID, requester.GraderID)
		if err != nil {
			return 0, false, err
		}
		if claimed {
			return candidate.ID, true, nil
		}
		// Lost the claim race; keep walking the ranked list.
	}

	for _, id := range filtered {
		claimed, err := s.claimPeer(ctx, id, requester.GraderID)
		if err != nil {
			return 0, false, err
		}
		if claimed {
			return id, true, nil
		}
	}

	return 0, false, nil
}

func (s *selectorService) claimPeer(ctx context.Context, id uint, graderID string) (bool, error) {
	ok, err := s.submissions.Claim(ctx, id, models.StateWaitingToBeGraded, models.GraderTypePeer)
	if err != nil {
		return false, err
	}
	if !ok {
		observability.CheckoutConflicts().Inc()
		return false, nil
	}

	s.startTiming(ctx, id, graderID, models.GraderTypePeer)
	return true, nil
}

func (s *selectorService) selectForML(ctx context.Context, requester RequesterContext) (uint, bool, error) {
	eligible, err := s.routing.MLEligible(ctx, requester.Location)
	if err != nil {
		return 0, false, err
	}
	if !eligible {
		return 0, false, nil
	}

	pending, err := s.submissions.PendingForPool(ctx, requester.Location, models.GraderTypeML)
	if err != nil {
		return 0, false, err
	}

	for _, candidate := range pending {
		ok, err := s.submissions.Claim(ctx, candidate.ID, models.StateWaitingToBeGraded, models.GraderTypeML)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			observability.CheckoutConflicts().Inc()
			continue
		}
		return candidate.ID, true, nil
	}

	return 0, false, nil
}

func (s *selectorService) selectForBasicCheck(ctx context.Context, requester RequesterContext) (uint, bool, error) {
	pending, err := s.submissions.PendingForPool(ctx, requester.Location, models.GraderTypeBasicCheck)
	if err != nil {
		return 0, false, err
	}

	for _, candidate := range pending {
		ok, err := s.submissions.Claim(ctx, candidate.ID, models.StateWaitingToBeGraded, models.GraderTypeBasicCheck)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			observability.CheckoutConflicts().Inc()
			continue
		}
		return candidate.ID, true, nil
	}

	return 0, false, nil
}

func (s *selectorService) startTiming(ctx context.Context, submissionID uint, graderID, graderType string) {
	record := models.TimingRecord{
		SubmissionID: submissionID,
		GraderID:     graderID,
		GraderType:   graderType,
	}
	if err := s.timings.Start(ctx, &record); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to start timing record")
	}
}

func containsText(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
