package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grading-core/internal/dto"
	"github.com/noah-isme/grading-core/internal/service"
	"github.com/noah-isme/grading-core/internal/utils"
)

// IntakeHandler accepts new submissions from the external queue puller.
type IntakeHandler struct {
	service service.IntakeService
	logger  zerolog.Logger
}

// NewIntakeHandler builds an intake handler instance.
func NewIntakeHandler(service service.IntakeService, logger zerolog.Logger) *IntakeHandler {
	return &IntakeHandler{
		service: service,
		logger:  logger.With().Str("component", "intake_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *IntakeHandler) Register(router fiber.Router) {
	router.Post("", h.intake)
}

func (h *IntakeHandler) intake(c *fiber.Ctx) error {
	var payload dto.IntakeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	id, err := h.service.Intake(c.UserContext(), payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission accepted", dto.IntakeResponse{SubmissionID: id})
}
