package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grading-core/internal/dto"
	"github.com/noah-isme/grading-core/internal/service"
	"github.com/noah-isme/grading-core/internal/utils"
)

// ModerationHandler exposes flagging and flag resolution to course staff.
type ModerationHandler struct {
	service service.ModerationService
	logger  zerolog.Logger
}

// NewModerationHandler builds a moderation handler instance.
func NewModerationHandler(service service.ModerationService, logger zerolog.Logger) *ModerationHandler {
	return &ModerationHandler{
		service: service,
		logger:  logger.With().Str("component", "moderation_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ModerationHandler) Register(router fiber.Router) {
	router.Post("/submissions/:id/flag", h.flag)
	router.Post("/actions", h.takeAction)
	router.Get("/flagged", h.flagged)
}

func (h *ModerationHandler) flag(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Flag(c.UserContext(), id); err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission flagged", nil)
}

func (h *ModerationHandler) takeAction(c *fiber.Ctx) error {
	var payload dto.FlagActionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	action, err := service.ParseFlagAction(payload.Action)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	if err := h.service.TakeAction(c.UserContext(), action, payload.SubmissionID); err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "action applied", nil)
}

func (h *ModerationHandler) flagged(c *fiber.Ctx) error {
	courseID := c.Query("course_id")
	if courseID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "course_id is required")
	}

	flagged, err := h.service.FlaggedSubmissions(c.UserContext(), courseID)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "flagged submissions retrieved", flagged)
}
