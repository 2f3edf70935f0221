package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/yoraa/rewards-engine/internal/config"
	"github.com/yoraa/rewards-engine/internal/model"
	"github.com/yoraa/rewards-engine/internal/service"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	cfg           *config.Config
	ledgerSvc     *service.LedgerService
	redemptionSvc *service.RedemptionService
	pinger        Pinger
}

func New(cfg *config.Config, ledgerSvc *service.LedgerService, redemptionSvc *service.RedemptionService, pinger Pinger) *Handler {
	return &Handler{
		cfg:           cfg,
		ledgerSvc:     ledgerSvc,
		redemptionSvc: redemptionSvc,
		pinger:        pinger,
	}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	if h.pinger != nil {
		if err := h.pinger.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
	}
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

// RunSweep triggers a status sweep; meant for external cron.
func (h *Handler) RunSweep(c *fiber.Ctx) error {
	n, err := h.redemptionSvc.ExpireSweep(c.Context())
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "ok",
		"swept":  n,
	})
}

// apiError maps a domain error to an HTTP status and a stable error code so
// calling UIs can render specific messaging.
func apiError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	code := "INTERNAL"

	switch {
	case errors.Is(err, model.ErrInvalidAmount):
		status, code = fiber.StatusBadRequest, "INVALID_AMOUNT"
	case errors.Is(err, model.ErrValidation):
		status, code = fiber.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, model.ErrInsufficientBalance):
		status, code = fiber.StatusPaymentRequired, "INSUFFICIENT_BALANCE"
	case errors.Is(err, model.ErrAccountNotFound):
		status, code = fiber.StatusNotFound, "ACCOUNT_NOT_FOUND"
	case errors.Is(err, model.ErrAccountInactive):
		status, code = fiber.StatusConflict, "ACCOUNT_INACTIVE"
	case errors.Is(err, model.ErrCodeNotFound):
		status, code = fiber.StatusNotFound, "CODE_NOT_FOUND"
	case errors.Is(err, model.ErrCodeInactive):
		status, code = fiber.StatusConflict, "CODE_INACTIVE"
	case errors.Is(err, model.ErrCodeExpired):
		status, code = fiber.StatusConflict, "CODE_EXPIRED"
	case errors.Is(err, model.ErrRedemptionCapReached):
		status, code = fiber.StatusConflict, "REDEMPTION_CAP_REACHED"
	case errors.Is(err, model.ErrAlreadyRedeemed):
		status, code = fiber.StatusConflict, "ALREADY_REDEEMED"
	case errors.Is(err, model.ErrDuplicateCode):
		status, code = fiber.StatusConflict, "DUPLICATE_CODE"
	}

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
