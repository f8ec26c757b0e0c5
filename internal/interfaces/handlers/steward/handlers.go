package steward

import (
	"errors"
	"strconv"

	stewardsvc "steward-backend/internal/application/steward"
	"steward-backend/internal/middleware"
	"steward-backend/internal/pkg/constants"
	"steward-backend/internal/pkg/response"
	"steward-backend/internal/pkg/validation"
	engine "steward-backend/internal/steward"

	"github.com/gofiber/fiber/v2"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
)

// Handlers exposes the steward service over HTTP.
type Handlers struct {
	Service *stewardsvc.Service
}

// BuyRequest body. Amounts are decimal wei strings. Payment is the value the
// buyer sends with the call: the sale price plus the opening deposit.
type BuyRequest struct {
	NewPrice     string `json:"new_price"`
	CurrentPrice string `json:"current_price"`
	Payment      string `json:"payment"`
}

// PriceRequest body for change-price and change-initial-price.
type PriceRequest struct {
	NewPrice string `json:"new_price"`
}

// AmountRequest body for deposit and withdraw-deposit.
type AmountRequest struct {
	Amount string `json:"amount"`
}

// RoleRequest body for role hand-over.
type RoleRequest struct {
	Address string `json:"address"`
}

// OperationResult is the data of a successful mutation.
type OperationResult struct {
	Events  []stewardsvc.EventMessage `json:"events"`
	Steward *stewardsvc.Snapshot      `json:"steward,omitempty"`
}

// Snapshot GET /api/v1/steward
func (h *Handlers) Snapshot(c *fiber.Ctx) error {
	snap, err := h.Service.Snapshot(c.UserContext())
	if err != nil {
		return h.fail(c, "snapshot", err)
	}
	return response.Success(c, "Steward fetched successfully", snap, nil)
}

// PatronageOwed GET /api/v1/steward/patronage-owed
func (h *Handlers) PatronageOwed(c *fiber.Ctx) error {
	owed, at, err := h.Service.PatronageOwed(c.UserContext())
	if err != nil {
		return h.fail(c, "patronage_owed", err)
	}
	return response.Success(c, "Patronage owed fetched successfully", fiber.Map{
		"patronage_owed": owed.Dec(),
		"timestamp":      at,
	}, nil)
}

// ForeclosureTime GET /api/v1/steward/foreclosure-time
func (h *Handlers) ForeclosureTime(c *fiber.Ctx) error {
	ft, err := h.Service.ForeclosureTime(c.UserContext())
	if err != nil {
		return h.fail(c, "foreclosure_time", err)
	}
	return response.Success(c, "Foreclosure time fetched successfully", fiber.Map{"foreclosure_time": ft}, nil)
}

// Patron GET /api/v1/steward/patrons/:address
func (h *Handlers) Patron(c *fiber.Ctx) error {
	addr, err := validation.ParseAddress(c.Params("address"))
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	info, err := h.Service.Patron(c.UserContext(), addr)
	if err != nil {
		return h.fail(c, "patron", err)
	}
	return response.Success(c, "Patron fetched successfully", info, nil)
}

// PullFunds GET /api/v1/steward/pull-funds/:address
func (h *Handlers) PullFunds(c *fiber.Ctx) error {
	addr, err := validation.ParseAddress(c.Params("address"))
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	bal, err := h.Service.PullFunds(c.UserContext(), addr)
	if err != nil {
		return h.fail(c, "pull_funds", err)
	}
	return response.Success(c, "Pull funds fetched successfully", fiber.Map{
		"address": addr.Hex(),
		"balance": bal.Dec(),
	}, nil)
}

// Events GET /api/v1/steward/events?type=&limit=
func (h *Handlers) Events(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return response.Error(c, "limit must be a positive integer", fiber.StatusBadRequest, nil)
		}
		limit = n
	}
	events, err := h.Service.Events(c.UserContext(), c.Query("type"), limit)
	if err != nil {
		return h.fail(c, "events", err)
	}
	return response.Success(c, "Events fetched successfully", events, fiber.Map{"count": len(events)})
}

// Collect POST /api/v1/steward/collect settles patronage. Anyone may call it.
func (h *Handlers) Collect(c *fiber.Ctx) error {
	caller, _ := middleware.Caller(c)
	out, err := h.Service.Collect(c.UserContext(), caller)
	return h.done(c, "collect", "Patronage collected", out, err)
}

// Buy POST /api/v1/steward/buy
func (h *Handlers) Buy(c *fiber.Ctx) error {
	var req BuyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	newPrice, err := validation.ParseWei(req.NewPrice)
	if err != nil {
		return response.Error(c, "new_price: "+err.Error(), fiber.StatusBadRequest, nil)
	}
	// current_price may be omitted when buying from the steward.
	var currentPrice *uint256.Int
	if req.CurrentPrice != "" {
		if currentPrice, err = validation.ParseWei(req.CurrentPrice); err != nil {
			return response.Error(c, "current_price: "+err.Error(), fiber.StatusBadRequest, nil)
		}
	}
	payment, err := validation.ParseWei(req.Payment)
	if err != nil {
		return response.Error(c, "payment: "+err.Error(), fiber.StatusBadRequest, nil)
	}
	caller, _ := middleware.Caller(c)
	out, err := h.Service.Buy(c.UserContext(), caller, newPrice, currentPrice, payment)
	return h.done(c, "buy", "Asset bought", out, err)
}

// ChangePrice POST /api/v1/steward/change-price
func (h *Handlers) ChangePrice(c *fiber.Ctx) error {
	price, err := parsePrice(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	caller, _ := middleware.Caller(c)
	out, err := h.Service.ChangePrice(c.UserContext(), caller, price)
	return h.done(c, "change_price", "Price changed", out, err)
}

// ChangeInitialPrice POST /api/v1/steward/change-initial-price
func (h *Handlers) ChangeInitialPrice(c *fiber.Ctx) error {
	price, err := parsePrice(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	caller, _ := middleware.Caller(c)
	out, err := h.Service.ChangeInitialPrice(c.UserContext(), caller, price)
	return h.done(c, "change_initial_price", "Initial price changed", out, err)
}

// Deposit POST /api/v1/steward/deposit
func (h *Handlers) Deposit(c *fiber.Ctx) error {
	amount, err := parseAmount(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	caller, _ := middleware.Caller(c)
	out, err := h.Service.DepositWei(c.UserContext(), caller, amount)
	return h.done(c, "deposit", "Deposit added", out, err)
}

// WithdrawDeposit POST /api/v1/steward/withdraw-deposit
func (h *Handlers) WithdrawDeposit(c *fiber.Ctx) error {
	amount, err := parseAmount(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	caller, _ := middleware.Caller(c)
	out, err := h.Service.WithdrawDeposit(c.UserContext(), caller, amount)
	return h.done(c, "withdraw_deposit", "Deposit withdrawn", out, err)
}

// Exit POST /api/v1/steward/exit withdraws the whole remaining deposit.
func (h *Handlers) Exit(c *fiber.Ctx) error {
	caller, _ := middleware.Caller(c)
	out, err := h.Service.Exit(c.UserContext(), caller)
	return h.done(c, "exit", "Deposit withdrawn", out, err)
}

// WithdrawPullFunds POST /api/v1/steward/withdraw-pull-funds
func (h *Handlers) WithdrawPullFunds(c *fiber.Ctx) error {
	caller, _ := middleware.Caller(c)
	out, err := h.Service.WithdrawPullFunds(c.UserContext(), caller)
	return h.done(c, "withdraw_pull_funds", "Funds withdrawn", out, err)
}

// ChangeRole POST /api/v1/steward/roles/:role hands a role to a new address.
func (h *Handlers) ChangeRole(c *fiber.Ctx) error {
	role := c.Params("role")
	if !constants.IsValidRole(role) {
		return response.Error(c, "Unknown role", fiber.StatusNotFound, nil)
	}
	var req RoleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	next, err := validation.ParseAddress(req.Address)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	caller, _ := middleware.Caller(c)

	ctx := c.UserContext()
	var out *engine.Outcome
	switch role {
	case constants.Artist:
		out, err = h.Service.ChangeArtistTo(ctx, caller, next)
	case constants.Beneficiary:
		out, err = h.Service.ChangeBeneficiaryTo(ctx, caller, next)
	case constants.Platform:
		out, err = h.Service.ChangePlatformTo(ctx, caller, next)
	}
	return h.done(c, "change_"+role, "Role changed", out, err)
}

func parsePrice(c *fiber.Ctx) (*uint256.Int, error) {
	var req PriceRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, errors.New("Invalid request body")
	}
	price, err := validation.ParseWei(req.NewPrice)
	if err != nil {
		return nil, errors.New("new_price: " + err.Error())
	}
	return price, nil
}

func parseAmount(c *fiber.Ctx) (*uint256.Int, error) {
	var req AmountRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, errors.New("Invalid request body")
	}
	amount, err := validation.ParseWei(req.Amount)
	if err != nil {
		return nil, errors.New("amount: " + err.Error())
	}
	return amount, nil
}

func (h *Handlers) done(c *fiber.Ctx, op, message string, out *engine.Outcome, err error) error {
	if err != nil {
		return h.fail(c, op, err)
	}
	result := OperationResult{Events: make([]stewardsvc.EventMessage, 0, len(out.Events))}
	for _, evt := range out.Events {
		result.Events = append(result.Events, stewardsvc.EventMessage{Type: evt.Type, Attributes: evt.Attributes, OccurredAt: evt.Time})
	}
	if snap, err := h.Service.Snapshot(c.UserContext()); err == nil {
		result.Steward = snap
	} else {
		log.Warn().Err(err).Str("operation", op).Msg("snapshot after commit")
	}
	return response.Success(c, message, result, nil)
}

// fail maps service and engine errors onto HTTP statuses.
func (h *Handlers) fail(c *fiber.Ctx, op string, err error) error {
	if errors.Is(err, stewardsvc.ErrNotInitialized) {
		return response.Error(c, err.Error(), fiber.StatusServiceUnavailable, nil)
	}
	kind := engine.KindOf(err)
	switch kind {
	case engine.KindAuthorization:
		return response.ErrorKind(c, err.Error(), fiber.StatusForbidden, kind.String())
	case engine.KindValue:
		return response.ErrorKind(c, err.Error(), fiber.StatusBadRequest, kind.String())
	case engine.KindStaleState:
		return response.ErrorKind(c, err.Error(), fiber.StatusConflict, kind.String())
	case engine.KindTransferBlocked:
		return response.ErrorKind(c, err.Error(), fiber.StatusServiceUnavailable, kind.String())
	}
	if errors.Is(err, engine.ErrPaymentFailed) {
		return response.ErrorKind(c, "Payment to caller failed", fiber.StatusBadGateway, kind.String())
	}
	log.Error().Err(err).Str("operation", op).Str("trace_id", middleware.GetTraceID(c)).Msg("steward operation failed")
	return response.ErrorKind(c, "Internal Server Error", fiber.StatusInternalServerError, kind.String())
}
