package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/yoraa/rewards-engine/internal/middleware"
)

// GetAccount returns the caller's points account, creating it on first
// access.
func (h *Handler) GetAccount(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	account, err := h.ledgerSvc.GetOrCreate(c.Context(), userID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(account)
}

// GetHistory returns a page of the caller's transaction history, newest
// first.
func (h *Handler) GetHistory(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))

	transactions, err := h.ledgerSvc.History(c.Context(), userID, page, pageSize)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(fiber.Map{
		"transactions": transactions,
		"page":         page,
	})
}

type RedeemPointsRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// RedeemPoints debits points from the caller's balance.
func (h *Handler) RedeemPoints(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req RedeemPointsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
			"code":  "VALIDATION_ERROR",
		})
	}

	account, err := h.ledgerSvc.Redeem(c.Context(), userID, req.Amount, req.Description)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(account)
}
