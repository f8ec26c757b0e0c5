package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCheckAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, CheckAdminKey(string(hash), "secret"))
	assert.False(t, CheckAdminKey(string(hash), "Secret"))
	assert.False(t, CheckAdminKey(string(hash), ""))
	assert.False(t, CheckAdminKey("", "secret"))
}

func TestRequireAuth_UsesSessionAddress(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if raw := c.Get("X-User"); raw != "" {
			c.Locals(userLocal, map[string]interface{}{"address": raw})
		}
		return c.Next()
	})
	app.Get("/me", RequireAuth(), func(c *fiber.Ctx) error {
		addr, ok := Caller(c)
		require.True(t, ok)
		return c.SendString(addr.Hex())
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("X-User", "not-an-address")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("X-User", "0x000000000000000000000000000000000000a001")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCaller_NoSession(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		addr, ok := Caller(c)
		assert.False(t, ok)
		assert.Equal(t, common.Address{}, addr)
		return c.SendStatus(fiber.StatusNoContent)
	})
	_, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
}

func TestTracing_KeepsValidIncomingID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetTraceID(c)) })

	id := uuid.New().String()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(traceIDHeader, id)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, id, resp.Header.Get(traceIDHeader))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(traceIDHeader, "bogus")
	resp, err = app.Test(req)
	require.NoError(t, err)
	_, err = uuid.Parse(resp.Header.Get(traceIDHeader))
	assert.NoError(t, err)
}

func TestHealthMarker_RecordsErrors(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(Tracing(), HealthMarker(rdb))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db exploded") })
	app.Get("/health/json", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for _, path := range []string{"/ok", "/boom", "/health/json"} {
		_, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
	}

	ctx := context.Background()
	total, _ := rdb.Get(ctx, KeyReqTotal).Int()
	failed, _ := rdb.Get(ctx, KeyReqErrors).Int()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, failed)

	entries, err := rdb.LRange(ctx, KeyErrorLog, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(entries[0]), &entry))
	assert.Equal(t, "/boom", entry["path"])
	assert.Equal(t, "db exploded", entry["message"])
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("password=hunter2") })
	app.Get("/missing", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusNotFound, "nothing here") })

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Internal Server Error", out["error"].(map[string]interface{})["message"])

	resp, err = app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSConfig{AllowedSuffix: ".steward.art, .vercel.app", DevPassword: "letmein"}))
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendString("ok") })

	send := func(method, origin, devPassword string) *http.Response {
		req := httptest.NewRequest(method, "/x", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if devPassword != "" {
			req.Header.Set(devPasswordHeader, devPassword)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, fiber.StatusOK, send("GET", "", "").StatusCode)

	resp := send("GET", "https://app.steward.art", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://app.steward.art", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), AdminKeyHeader)

	assert.Equal(t, fiber.StatusOK, send("GET", "https://preview.vercel.app", "").StatusCode)
	assert.Equal(t, fiber.StatusForbidden, send("GET", "https://evil.test", "").StatusCode)
	assert.Equal(t, fiber.StatusOK, send("GET", "https://evil.test", "letmein").StatusCode)
	assert.Equal(t, fiber.StatusNoContent, send("OPTIONS", "http://localhost:3000", "").StatusCode)
	assert.Equal(t, fiber.StatusNoContent, send("OPTIONS", "https://app.steward.art", "").StatusCode)
}

func TestSession_SavesOnlyWhenChanged(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	app := fiber.New()
	app.Use(SessionWithClient(rdb, "test-secret"))
	app.Post("/login", func(c *fiber.Ctx) error {
		id := RegenerateSessionID(c)
		SetSessionUser(c, SessionUser{Address: "0x000000000000000000000000000000000000a001"})
		return c.SendString(id)
	})
	app.Get("/me", func(c *fiber.Ctx) error {
		addr, ok := Caller(c)
		if !ok {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.SendString(addr.Hex())
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/login", nil))
	require.NoError(t, err)
	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	id := string(buf[:n])
	require.True(t, mr.Exists(SessionRedisPrefix+id))

	me := func(cookie string) int {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Cookie", SessionCookieName+"="+cookie)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}
	assert.Equal(t, fiber.StatusOK, me(SignSessionID("test-secret", id)))
	// A known id is not enough without the matching signature.
	assert.Equal(t, fiber.StatusUnauthorized, me("s:"+id+".sig"))
	assert.Equal(t, fiber.StatusUnauthorized, me(id))
	assert.Equal(t, fiber.StatusUnauthorized, me(SignSessionID("other-secret", id)))

	// Anonymous requests never create a session.
	resp, err = app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Len(t, mr.Keys(), 1)
}
