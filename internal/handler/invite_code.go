package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/yoraa/rewards-engine/internal/middleware"
)

// ValidateCode checks a code without redeeming it.
func (h *Handler) ValidateCode(c *fiber.Ctx) error {
	code := c.Query("code")

	result, err := h.redemptionSvc.Validate(c.Context(), code)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(result)
}

type RedeemCodeRequest struct {
	Code string `json:"code"`
}

// RedeemCode redeems a code for the caller.
func (h *Handler) RedeemCode(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req RedeemCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
			"code":  "VALIDATION_ERROR",
		})
	}

	result, err := h.redemptionSvc.Redeem(c.Context(), req.Code, userID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(result)
}
