package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grading-core/internal/dto"
	"github.com/noah-isme/grading-core/internal/service"
	"github.com/noah-isme/grading-core/internal/utils"
)

// SweepHandler lets an external scheduler trigger the reaper and duplicate
// sweeps on demand.
type SweepHandler struct {
	reaper     service.ReaperService
	duplicates service.DuplicateService
	logger     zerolog.Logger
}

// NewSweepHandler builds a sweep handler instance.
func NewSweepHandler(reaper service.ReaperService, duplicates service.DuplicateService, logger zerolog.Logger) *SweepHandler {
	return &SweepHandler{
		reaper:     reaper,
		duplicates: duplicates,
		logger:     logger.With().Str("component", "sweep_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SweepHandler) Register(router fiber.Router) {
	router.Post("/reaper", h.runReaper)
	router.Post("/duplicates", h.runDuplicates)
}

func (h *SweepHandler) runReaper(c *fiber.Ctx) error {
	report, err := h.reaper.RunSweep(c.UserContext())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "reaper sweep completed", dto.SweepReportResponse{
		TimedOutReset:               report.TimedOutReset,
		Expired:                     report.Expired,
		BasicCheckResubmitted:       report.BasicCheckResubmitted,
		FailedBasicCheckResubmitted: report.FailedBasicCheckResubmitted,
		ReclaimedToStaff:            report.ReclaimedToStaff,
		PromotedToML:                report.PromotedToML,
		DuplicatesFinalized:         report.DuplicatesFinalized,
	})
}

func (h *SweepHandler) runDuplicates(c *fiber.Ctx) error {
	count, err := h.duplicates.RunSweep(c.UserContext())
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "duplicate sweep completed", fiber.Map{"duplicates_finalized": count})
}
