package steward

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	stewardsvc "steward-backend/internal/application/steward"
	"steward-backend/internal/infrastructure/database"
	"steward-backend/internal/infrastructure/payout"
	"steward-backend/internal/middleware"
	engine "steward-backend/internal/steward"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	self        = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	artist      = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	beneficiary = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	platform    = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	alice       = common.HexToAddress("0x000000000000000000000000000000000000a001")
	bob         = common.HexToAddress("0x000000000000000000000000000000000000b001")
)

const (
	t0 int64 = 1_700_000_000
	// initial price 0.1 ETH plus ten minutes of patronage at 1 ETH and 5%.
	buyPayment = "100000951293759512"
	oneEther   = "1000000000000000000"
)

const testCallerHeader = "X-Test-Caller"

type fixture struct {
	app *fiber.App
	svc *stewardsvc.Service
	now *int64
}

// setupApp mounts the steward routes. The test caller header stands in for
// the session cookie.
func setupApp(t *testing.T, bootstrap bool) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	rates, err := engine.DefaultRates(5)
	require.NoError(t, err)
	eng, err := engine.NewEngine(rates)
	require.NoError(t, err)

	now := t0
	svc := &stewardsvc.Service{DB: db, Engine: eng, TokenID: 42, Now: func() time.Time { return time.Unix(now, 0) }}
	if bootstrap {
		require.NoError(t, svc.Bootstrap(context.Background(), stewardsvc.Genesis{
			Self:         self,
			InitialPrice: uint256.NewInt(100_000_000_000_000_000),
			Roles:        engine.Roles{Artist: artist, Beneficiary: beneficiary, Platform: platform},
		}))
		rail := payout.New(db)
		for _, addr := range []common.Address{alice, bob} {
			require.NoError(t, rail.Fund(context.Background(), addr, uint256.NewInt(10_000_000_000_000_000_000)))
		}
	}

	h := &Handlers{Service: svc}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if raw := c.Get(testCallerHeader); raw != "" {
			c.Locals("user", map[string]interface{}{"address": raw})
		}
		return c.Next()
	})
	g := app.Group("/steward")
	g.Get("/", h.Snapshot)
	g.Get("/patronage-owed", h.PatronageOwed)
	g.Get("/foreclosure-time", h.ForeclosureTime)
	g.Get("/patrons/:address", h.Patron)
	g.Get("/pull-funds/:address", h.PullFunds)
	g.Get("/events", h.Events)
	g.Post("/collect", h.Collect)
	authed := g.Group("", middleware.RequireAuth())
	authed.Post("/buy", h.Buy)
	authed.Post("/change-price", h.ChangePrice)
	authed.Post("/change-initial-price", h.ChangeInitialPrice)
	authed.Post("/deposit", h.Deposit)
	authed.Post("/withdraw-deposit", h.WithdrawDeposit)
	authed.Post("/exit", h.Exit)
	authed.Post("/withdraw-pull-funds", h.WithdrawPullFunds)
	authed.Post("/roles/:role", h.ChangeRole)
	return &fixture{app: app, svc: svc, now: &now}
}

func (f *fixture) do(t *testing.T, method, path string, caller *common.Address, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != nil {
		req.Header.Set(testCallerHeader, caller.Hex())
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode, decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func data(out map[string]interface{}) map[string]interface{} {
	d, _ := out["data"].(map[string]interface{})
	return d
}

func errorOf(out map[string]interface{}) map[string]interface{} {
	e, _ := out["error"].(map[string]interface{})
	return e
}

func (f *fixture) buyAsAlice(t *testing.T) {
	t.Helper()
	code, out := f.do(t, "POST", "/steward/buy", &alice, BuyRequest{NewPrice: oneEther, Payment: buyPayment})
	require.Equal(t, fiber.StatusOK, code, out)
}

func TestSnapshot_Genesis(t *testing.T) {
	f := setupApp(t, true)
	code, out := f.do(t, "GET", "/steward", nil, nil)
	require.Equal(t, fiber.StatusOK, code)
	snap := data(out)
	assert.Equal(t, "foreclosed", snap["status"])
	assert.Equal(t, "100000000000000000", snap["asking_price"])
	assert.Equal(t, "0", snap["price"])
	assert.Equal(t, self.Hex(), snap["token_owner"])
}

func TestSnapshot_NotInitialized(t *testing.T) {
	f := setupApp(t, false)
	code, out := f.do(t, "GET", "/steward", nil, nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, code)
	assert.Equal(t, "error", out["status"])
}

func TestBuy_RequiresSession(t *testing.T) {
	f := setupApp(t, true)
	code, _ := f.do(t, "POST", "/steward/buy", nil, BuyRequest{NewPrice: oneEther, Payment: buyPayment})
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestBuy_InvalidAmounts(t *testing.T) {
	f := setupApp(t, true)
	code, out := f.do(t, "POST", "/steward/buy", &alice, BuyRequest{NewPrice: "1.5", Payment: buyPayment})
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Contains(t, errorOf(out)["message"], "new_price")

	code, _ = f.do(t, "POST", "/steward/buy", &alice, BuyRequest{NewPrice: oneEther, Payment: "-1"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	// Zero price passes parsing and is rejected by the engine.
	code, out = f.do(t, "POST", "/steward/buy", &alice, BuyRequest{NewPrice: "0", Payment: buyPayment})
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, engine.ErrPriceZero.Error(), errorOf(out)["message"])
	assert.Equal(t, "value", errorOf(out)["details"].(map[string]interface{})["kind"])
}

func TestBuy_UnfundedCaller(t *testing.T) {
	f := setupApp(t, true)
	carol := common.HexToAddress("0x000000000000000000000000000000000000c0c0")
	code, out := f.do(t, "POST", "/steward/buy", &carol, BuyRequest{NewPrice: oneEther, Payment: buyPayment})
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "value", errorOf(out)["details"].(map[string]interface{})["kind"])

	code, out = f.do(t, "GET", "/steward", nil, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "foreclosed", data(out)["status"])
}

func TestBuy_ThenReadAccessors(t *testing.T) {
	f := setupApp(t, true)
	code, out := f.do(t, "POST", "/steward/buy", &alice, BuyRequest{NewPrice: oneEther, Payment: buyPayment})
	require.Equal(t, fiber.StatusOK, code)
	result := data(out)
	events := result["events"].([]interface{})
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventTypeBuy, events[0].(map[string]interface{})["type"])
	assert.Equal(t, "owned", result["steward"].(map[string]interface{})["status"])

	*f.now += 300
	code, out = f.do(t, "GET", "/steward/patronage-owed", nil, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, float64(t0+300), data(out)["timestamp"])
	assert.NotEqual(t, "0", data(out)["patronage_owed"])

	code, out = f.do(t, "GET", "/steward/foreclosure-time", nil, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, float64(t0+599), data(out)["foreclosure_time"])

	code, out = f.do(t, "GET", "/steward/patrons/"+alice.Hex(), nil, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, data(out)["current"])

	code, out = f.do(t, "GET", "/steward/pull-funds/"+artist.Hex(), nil, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "50000000000000000", data(out)["balance"])

	code, _ = f.do(t, "GET", "/steward/pull-funds/nope", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestChangePrice_NotPatron(t *testing.T) {
	f := setupApp(t, true)
	f.buyAsAlice(t)

	code, out := f.do(t, "POST", "/steward/change-price", &bob, PriceRequest{NewPrice: "5"})
	assert.Equal(t, fiber.StatusForbidden, code)
	assert.Equal(t, engine.ErrNotPatron.Error(), errorOf(out)["message"])

	code, out = f.do(t, "POST", "/steward/change-price", &alice, PriceRequest{NewPrice: "2000000000000000000"})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "2000000000000000000", data(out)["steward"].(map[string]interface{})["price"])
}

func TestBuy_StaleWitnessConflict(t *testing.T) {
	f := setupApp(t, true)
	f.buyAsAlice(t)

	code, out := f.do(t, "POST", "/steward/buy", &bob, BuyRequest{NewPrice: oneEther, CurrentPrice: "1", Payment: "2000000000000000000"})
	assert.Equal(t, fiber.StatusConflict, code)
	assert.Equal(t, "stale_state", errorOf(out)["details"].(map[string]interface{})["kind"])

	code, _ = f.do(t, "POST", "/steward/buy", &bob, BuyRequest{NewPrice: oneEther, CurrentPrice: oneEther, Payment: "2000000000000000000"})
	assert.Equal(t, fiber.StatusOK, code)
}

func TestCollect_ForeclosesAfterDepositRunsOut(t *testing.T) {
	f := setupApp(t, true)
	f.buyAsAlice(t)
	*f.now += 600

	code, out := f.do(t, "POST", "/steward/collect", nil, nil)
	require.Equal(t, fiber.StatusOK, code)
	events := data(out)["events"].([]interface{})
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventTypeForeclosure, events[0].(map[string]interface{})["type"])

	code, out = f.do(t, "GET", "/steward/events?type="+engine.EventTypeForeclosure, nil, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, out["data"].([]interface{}), 1)
	assert.Equal(t, float64(1), out["metadata"].(map[string]interface{})["count"])

	code, _ = f.do(t, "GET", "/steward/events?limit=zero", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestDepositWithdrawExit(t *testing.T) {
	f := setupApp(t, true)
	f.buyAsAlice(t)

	code, _ := f.do(t, "POST", "/steward/deposit", &bob, AmountRequest{Amount: "1000"})
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = f.do(t, "POST", "/steward/deposit", &alice, AmountRequest{Amount: "1000"})
	require.Equal(t, fiber.StatusOK, code)

	code, out := f.do(t, "POST", "/steward/withdraw-deposit", &alice, AmountRequest{Amount: oneEther})
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, engine.ErrWithdrawTooMuch.Error(), errorOf(out)["message"])

	code, _ = f.do(t, "POST", "/steward/withdraw-deposit", &alice, AmountRequest{Amount: "1000"})
	require.Equal(t, fiber.StatusOK, code)

	code, out = f.do(t, "POST", "/steward/exit", &alice, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "0", data(out)["steward"].(map[string]interface{})["deposit"])

	got, err := payout.New(f.svc.DB).Received(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, "951293760512", got.Dec())
}

func TestWithdrawPullFunds(t *testing.T) {
	f := setupApp(t, true)

	code, out := f.do(t, "POST", "/steward/withdraw-pull-funds", &artist, nil)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, engine.ErrNoPullFunds.Error(), errorOf(out)["message"])

	f.buyAsAlice(t)
	rail := payout.New(f.svc.DB)
	require.NoError(t, rail.SetBlocked(context.Background(), artist, true))
	code, out = f.do(t, "POST", "/steward/withdraw-pull-funds", &artist, nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, code)
	assert.Equal(t, "transfer_blocked", errorOf(out)["details"].(map[string]interface{})["kind"])

	require.NoError(t, rail.SetBlocked(context.Background(), artist, false))
	code, _ = f.do(t, "POST", "/steward/withdraw-pull-funds", &artist, nil)
	assert.Equal(t, fiber.StatusOK, code)
}

func TestChangeRole(t *testing.T) {
	f := setupApp(t, true)

	code, _ := f.do(t, "POST", "/steward/roles/curator", &artist, RoleRequest{Address: bob.Hex()})
	assert.Equal(t, fiber.StatusNotFound, code)

	code, _ = f.do(t, "POST", "/steward/roles/artist", &bob, RoleRequest{Address: bob.Hex()})
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = f.do(t, "POST", "/steward/roles/platform", &platform, RoleRequest{Address: "0x0"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, out := f.do(t, "POST", "/steward/roles/beneficiary", &beneficiary, RoleRequest{Address: bob.Hex()})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, bob.Hex(), data(out)["steward"].(map[string]interface{})["beneficiary"])
}

func TestChangeInitialPrice_ArtistOnly(t *testing.T) {
	f := setupApp(t, true)

	code, _ := f.do(t, "POST", "/steward/change-initial-price", &alice, PriceRequest{NewPrice: "5"})
	assert.Equal(t, fiber.StatusForbidden, code)

	code, out := f.do(t, "POST", "/steward/change-initial-price", &artist, PriceRequest{NewPrice: "5"})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "5", data(out)["steward"].(map[string]interface{})["asking_price"])
}
