package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/grading-core/internal/utils"
)

// Auth role constants used by the WithAuth helper.
const (
	AuthRoleAny     = "any"
	AuthRoleStaff   = "staff"
	AuthRoleService = "service"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role           string
	RequireSubject bool
}

// WithAuth wraps a single handler with authentication/authorization guards.
// Use it where a whole router group guard would be too coarse.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireSubject := opts.RequireSubject
	if !requireSubject && role != AuthRoleAny {
		requireSubject = true
	}

	return func(c *fiber.Ctx) error {
		subject := c.Locals("subject")
		if requireSubject && subject == nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		if role == AuthRoleAny {
			if !requireSubject || subject != nil {
				return handler(c)
			}
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		currentRole := normalizeRoleValue(c.Locals("subject_role"))
		switch role {
		case AuthRoleStaff:
			if currentRole != "staff" && currentRole != "instructor" {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		case AuthRoleService:
			if currentRole != "service" {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		default:
			if currentRole != role {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		}

		return handler(c)
	}
}
