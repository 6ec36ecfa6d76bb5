package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grading-core/internal/dto"
	"github.com/noah-isme/grading-core/internal/middleware"
	"github.com/noah-isme/grading-core/internal/service"
	"github.com/noah-isme/grading-core/internal/utils"
)

// NotificationHandler serves the pending-work queries dashboards poll.
type NotificationHandler struct {
	service service.NotificationService
	logger  zerolog.Logger
}

// NewNotificationHandler builds a notification handler instance.
func NewNotificationHandler(service service.NotificationService, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("component", "notification_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Get("/peer-pending", middleware.WithAuth(h.peerPending, middleware.AuthOptions{RequireSubject: true}))
	router.Get("/staff-pending", middleware.WithAuth(h.staffPending, middleware.AuthOptions{Role: middleware.AuthRoleStaff}))
}

func (h *NotificationHandler) peerPending(c *fiber.Ctx) error {
	studentID := c.Query("student_id")
	courseID := c.Query("course_id")
	if studentID == "" || courseID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "student_id and course_id are required")
	}

	pending, err := h.service.PeerGradingPending(c.UserContext(), studentID, courseID)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "peer grading status retrieved", dto.PendingNotification{Pending: pending})
}

func (h *NotificationHandler) staffPending(c *fiber.Ctx) error {
	courseID := c.Query("course_id")
	if courseID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "course_id is required")
	}

	pending, err := h.service.StaffGradingPending(c.UserContext(), courseID)
	if err != nil {
		return handleServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "staff grading status retrieved", dto.PendingNotification{Pending: pending})
}
