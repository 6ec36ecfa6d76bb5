package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/grading-core/internal/config"
	"github.com/noah-isme/grading-core/internal/handler"
	"github.com/noah-isme/grading-core/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	IntakeHandler       *handler.IntakeHandler
	GradingHandler      *handler.GradingHandler
	ModerationHandler   *handler.ModerationHandler
	NotificationHandler *handler.NotificationHandler
	SweepHandler        *handler.SweepHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Submission intake (queue puller)
	if deps.IntakeHandler != nil {
		intake := app.Group("/api/v1/submissions", jwtMiddleware)
		deps.IntakeHandler.Register(intake)
	}

	// Grader pools: checkout & grade posting
	if deps.GradingHandler != nil {
		grading := app.Group("/api/v1/grading", jwtMiddleware,
			middleware.RateLimit("grading", 30, time.Second))
		deps.GradingHandler.Register(grading)
	}

	// Course staff moderation
	if deps.ModerationHandler != nil {
		moderation := app.Group("/api/v1/moderation", jwtMiddleware,
			middleware.RequireRole("staff", "instructor"))
		deps.ModerationHandler.Register(moderation)
	}

	// Pending-work notifications
	if deps.NotificationHandler != nil {
		notifications := app.Group("/api/v1/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}

	// Internal sweep triggers (scheduler only)
	if deps.SweepHandler != nil {
		sweeps := app.Group("/api/v1/internal/sweeps", jwtMiddleware,
			middleware.RequireRole("service"))
		deps.SweepHandler.Register(sweeps)
	}
}
