package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/yoraa/rewards-engine/internal/config"
	"github.com/yoraa/rewards-engine/internal/middleware"
)

// Register wires all routes onto the app.
func Register(app *fiber.App, cfg *config.Config, h *Handler) {
	app.Get("/health", h.Health)

	// Caller API
	api := app.Group("/api", middleware.APIAuth(cfg))
	api.Get("/account", h.GetAccount)
	api.Get("/account/history", h.GetHistory)
	api.Post("/points/redeem", h.RedeemPoints)
	api.Get("/codes/validate", h.ValidateCode)
	api.Post("/codes/redeem", h.RedeemCode)

	// Admin API
	admin := app.Group("/api/admin", middleware.APIAuth(cfg), middleware.AdminAuth(cfg))
	admin.Get("/accounts/:user_id", h.AdminGetAccount)
	admin.Get("/accounts/:user_id/history", h.AdminGetHistory)
	admin.Post("/accounts/:user_id/allocate", h.AdminAllocatePoints)
	admin.Post("/accounts/:user_id/adjust", h.AdminAdjustAccount)
	admin.Post("/accounts/:user_id/deactivate", h.AdminDeactivateAccount)

	admin.Get("/codes", h.AdminListCodes)
	admin.Post("/codes", h.AdminCreateCode)
	admin.Post("/codes/bulk", h.AdminCreateBulkCodes)
	admin.Post("/codes/status", h.AdminBulkToggleCodeStatus)
	admin.Post("/codes/:code_id/status", h.AdminToggleCodeStatus)
	admin.Get("/codes/:code_id/redemptions", h.AdminListCodeRedemptions)

	// Internal endpoints (for cron jobs)
	internal := app.Group("/internal")
	internal.Post("/cron/sweep", h.RunSweep)
}
