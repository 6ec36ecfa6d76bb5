package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/grading-core/internal/dto"
	"github.com/noah-isme/grading-core/internal/repository"
	"github.com/noah-isme/grading-core/internal/service"
	"github.com/noah-isme/grading-core/internal/utils"
)

// GradingHandler exposes selection and grade posting to grader-pool clients.
type GradingHandler struct {
	selector    service.SelectorService
	grading     service.GradingService
	submissions repository.SubmissionRepository
	logger      zerolog.Logger
}

// NewGradingHandler builds a grading handler instance.
func NewGradingHandler(selector service.SelectorService, grading service.GradingService, submissions repository.SubmissionRepository, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		selector:    selector,
		grading:     grading,
		submissions: submissions,
		logger:      logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Post("/next", h.selectNext)
	router.Post("/:id/grade", h.postGrade)
	router.Post("/:id/posted", h.markPostedBack)
}

func (h *GradingHandler) selectNext(c *fiber.Ctx) error {
	var payload dto.SelectNextRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	requester := service.RequesterContext{
		GraderID: payload.GraderID,
		CourseID: payload.CourseID,
		Location: payload.Location,
	}

	id, found, err := h.selector.SelectNext(c.UserContext(), payload.Pool, requester)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	if !found {
		return utils.SendSuccess(c, "no submissions pending", dto.SelectNextResponse{Found: false})
	}

	submission, err := h.submissions.GetByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		}
		return handleServiceError(c, h.logger, err)
	}

	response := dto.NewSubmissionResponse(submission)
	return utils.SendSuccess(c, "submission checked out", dto.SelectNextResponse{Found: true, Submission: &response})
}

func (h *GradingHandler) postGrade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.grading.PostGrade(c.UserContext(), id, payload)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "grade recorded", dto.NewSubmissionResponse(submission))
}

func (h *GradingHandler) markPostedBack(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.grading.MarkPostedBack(c.UserContext(), id); err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "results marked as posted", nil)
}
