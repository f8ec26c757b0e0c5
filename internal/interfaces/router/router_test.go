package router

import (
	"io"
	"net/http/httptest"
	"testing"

	"steward-backend/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return &config.Config{
		Env:             "test",
		RedisURL:        "redis://" + mr.Addr(),
		StewardAddress:  "0x00000000000000000000000000000000000000aa",
		Artist:          "0x0000000000000000000000000000000000000a01",
		Beneficiary:     "0x0000000000000000000000000000000000000b01",
		Platform:        "0x0000000000000000000000000000000000000c01",
		InitialPriceWei: "100000000000000000",
		PatronagePct:    5,
		TokenID:         42,
	}
}

func TestCreateApp_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Artist = "nope"
	_, _, err := CreateApp(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STEWARD_ARTIST")
}

func TestCreateApp_WithoutDatabase(t *testing.T) {
	app, services, err := CreateApp(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { services.Rdb.Close() })
	assert.Nil(t, services.Steward)
	assert.Nil(t, services.Keeper)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-Id"))

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "steward_http_requests_total")

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/steward", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/auth/nonce?address=0x000000000000000000000000000000000000a001", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
