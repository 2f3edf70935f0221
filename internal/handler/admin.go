package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/yoraa/rewards-engine/internal/model"
	"github.com/yoraa/rewards-engine/internal/service"
)

// AdminGetAccount returns any user's account, creating it if needed so an
// admin can allocate to users the engine has not seen yet.
func (h *Handler) AdminGetAccount(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	account, err := h.ledgerSvc.GetOrCreate(c.Context(), userID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(account)
}

func (h *Handler) AdminGetHistory(c *fiber.Ctx) error {
	userID := c.Params("user_id")

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

type AllocatePointsRequest struct {
	Amount      int64                  `json:"amount"`
	Description string                 `json:"description"`
	Basis       model.TransactionBasis `json:"basis"`
}

// AdminAllocatePoints credits points to a user's account.
func (h *Handler) AdminAllocatePoints(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	var req AllocatePointsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
			"code":  "VALIDATION_ERROR",
		})
	}

	account, err := h.ledgerSvc.Allocate(c.Context(), userID, req.Amount, req.Description, req.Basis)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(account)
}

type AdjustAccountRequest struct {
	TotalAllocated int64  `json:"total_allocated"`
	TotalRedeemed  int64  `json:"total_redeemed"`
	Reason         string `json:"reason"`
}

// AdminAdjustAccount overwrites a user's totals with an audited correction.
func (h *Handler) AdminAdjustAccount(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	var req AdjustAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
			"code":  "VALIDATION_ERROR",
		})
	}

	account, err := h.ledgerSvc.Adjust(c.Context(), userID, req.TotalAllocated, req.TotalRedeemed, req.Reason)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(account)
}

// AdminDeactivateAccount soft-deletes a user's account.
func (h *Handler) AdminDeactivateAccount(c *fiber.Ctx) error {
	userID := c.Params("user_id")

	if err := h.ledgerSvc.Deactivate(c.Context(), userID); err != nil {
		return apiError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
	})
}

// AdminListCodes lists codes, newest first.
func (h *Handler) AdminListCodes(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	codes, err := h.redemptionSvc.List(c.Context(), limit, offset)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(fiber.Map{
		"codes": codes,
	})
}

// AdminCreateCode creates one code.
func (h *Handler) AdminCreateCode(c *fiber.Ctx) error {
	var spec service.CodeSpec
	if err := c.BodyParser(&spec); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
			"code":  "VALIDATION_ERROR",
		})
	}

	invite, err := h.redemptionSvc.Create(c.Context(), spec)
	if err != nil {
		return apiError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invite)
}

type BulkCreateCodesRequest struct {
	Prefix string           `json:"prefix"`
	Count  int              `json:"count"`
	Spec   service.CodeSpec `json:"spec"`
}

// AdminCreateBulkCodes generates a batch of random codes with shared terms.
func (h *Handler) AdminCreateBulkCodes(c *fiber.Ctx) error {
	var req BulkCreateCodesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
			"code":  "VALIDATION_ERROR",
		})
	}

	codes, err := h.redemptionSvc.CreateBatch(c.Context(), req.Prefix, req.Count, req.Spec)
	if err != nil {
		return apiError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"codes": codes,
	})
}

type ToggleStatusRequest struct {
	Status model.CodeStatus `json:"status"`
}

// AdminToggleCodeStatus sets one code active or inactive.
func (h *Handler) AdminToggleCodeStatus(c *fiber.Ctx) error {
	codeID, err := uuid.Parse(c.Params("code_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid code id",
			"code":  "VALIDATION_ERROR",
		})
	}

	var req ToggleStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
			"code":  "VALIDATION_ERROR",
		})
	}

	invite, err := h.redemptionSvc.ToggleStatus(c.Context(), codeID, req.Status)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(invite)
}

type BulkToggleStatusRequest struct {
	CodeIDs []string         `json:"code_ids"`
	Status  model.CodeStatus `json:"status"`
}

// AdminBulkToggleCodeStatus sets several codes active or inactive.
func (h *Handler) AdminBulkToggleCodeStatus(c *fiber.Ctx) error {
	var req BulkToggleStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
			"code":  "VALIDATION_ERROR",
		})
	}

	ids := make([]uuid.UUID, 0, len(req.CodeIDs))
	for _, raw := range req.CodeIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid code id: " + raw,
				"code":  "VALIDATION_ERROR",
			})
		}
		ids = append(ids, id)
	}

	invites, err := h.redemptionSvc.BulkToggleStatus(c.Context(), ids, req.Status)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(fiber.Map{
		"codes": invites,
	})
}

// AdminListCodeRedemptions lists who redeemed a code.
func (h *Handler) AdminListCodeRedemptions(c *fiber.Ctx) error {
	codeID, err := uuid.Parse(c.Params("code_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid code id",
			"code":  "VALIDATION_ERROR",
		})
	}

	redemptions, err := h.redemptionSvc.Redemptions(c.Context(), codeID)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(fiber.Map{
		"redemptions": redemptions,
	})
}
