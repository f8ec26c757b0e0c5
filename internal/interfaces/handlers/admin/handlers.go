package admin

import (
	"steward-backend/internal/domain"
	"steward-backend/internal/infrastructure/payout"
	"steward-backend/internal/pkg/response"
	"steward-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers serves operator routes. They sit behind middleware.RequireAdminKey.
type Handlers struct {
	Rail *payout.Rail
}

// BlockRequest body. Omitting blocked means true.
type BlockRequest struct {
	Blocked *bool `json:"blocked"`
}

// BlockRecipient POST /api/v1/admin/recipients/:address/block marks a
// recipient as refusing inbound payments, or clears the flag.
func (h *Handlers) BlockRecipient(c *fiber.Ctx) error {
	addr, err := validation.ParseAddress(c.Params("address"))
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	var req BlockRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
		}
	}
	blocked := req.Blocked == nil || *req.Blocked
	if err := h.Rail.SetBlocked(c.UserContext(), addr, blocked); err != nil {
		log.Error().Err(err).Str("address", addr.Hex()).Msg("admin: set blocked failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	log.Info().Str("address", addr.Hex()).Bool("blocked", blocked).Msg("admin: recipient updated")
	return response.Success(c, "Recipient updated", fiber.Map{"address": addr.Hex(), "blocked": blocked}, nil)
}

// FundRequest body. Amount is a decimal wei string.
type FundRequest struct {
	Amount string `json:"amount"`
}

func accountView(rec *domain.Recipient) fiber.Map {
	return fiber.Map{
		"address":  rec.Address,
		"balance":  rec.Balance.String(),
		"received": rec.Received.String(),
		"charged":  rec.Charged.String(),
		"blocked":  rec.Blocked,
	}
}

// FundAccount POST /api/v1/admin/accounts/:address/fund credits wei that
// reached the steward from outside, so the address can spend it on buys and
// deposits.
func (h *Handlers) FundAccount(c *fiber.Ctx) error {
	addr, err := validation.ParseAddress(c.Params("address"))
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	var req FundRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	amount, err := validation.ParseWei(req.Amount)
	if err != nil {
		return response.Error(c, "amount: "+err.Error(), fiber.StatusBadRequest, nil)
	}
	ctx := c.UserContext()
	if err := h.Rail.Fund(ctx, addr, amount); err != nil {
		log.Error().Err(err).Str("address", addr.Hex()).Msg("admin: fund failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	rec, err := h.Rail.Account(ctx, addr)
	if err != nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	log.Info().Str("address", addr.Hex()).Str("amount", amount.Dec()).Msg("admin: account funded")
	return response.Success(c, "Account funded", accountView(rec), nil)
}

// Account GET /api/v1/admin/accounts/:address
func (h *Handlers) Account(c *fiber.Ctx) error {
	addr, err := validation.ParseAddress(c.Params("address"))
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	rec, err := h.Rail.Account(c.UserContext(), addr)
	if err != nil {
		log.Error().Err(err).Str("address", addr.Hex()).Msg("admin: account lookup failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Account fetched successfully", accountView(rec), nil)
}
