package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/grading-core/internal/config"
	"github.com/noah-isme/grading-core/internal/utils"
)

// HealthCheck reports basic liveness information.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "ok", fiber.Map{
			"app": cfg.AppName,
			"env": cfg.AppEnv,
		})
	}
}
