package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/yoraa/rewards-engine/internal/config"
)

// AdminAuth gates a route to the configured admin user IDs. Must run after
// APIAuth.
func AdminAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
				"code":  "UNAUTHORIZED",
			})
		}

		if !cfg.Server.IsAdmin(userID) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "access denied",
				"code":  "FORBIDDEN",
			})
		}

		return c.Next()
	}
}
