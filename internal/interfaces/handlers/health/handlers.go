package health

import (
	"encoding/json"
	"strconv"
	"time"

	healthsvc "steward-backend/internal/application/health"
	"steward-backend/internal/middleware"
	"steward-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const serviceName = "steward-api"

// Handlers holds dependencies for health endpoints.
type Handlers struct {
	Rdb     *redis.Client
	DB      healthsvc.DBPinger
	Steward healthsvc.StatusSource
	// AdminKeyHash is the bcrypt hash of HEALTH_ADMIN_KEY.
	AdminKeyHash string
}

const (
	defaultErrorLimit = 50
	maxErrorLimit     = 100
)

// adminKey reads the key from X-Admin-Key, falling back to ?key= for
// browser links.
func adminKey(c *fiber.Ctx) string {
	if k := c.Get(middleware.AdminKeyHeader); k != "" {
		return k
	}
	return c.Query("key")
}

// Reset clears health stats in Redis. Requires the admin key.
func (h *Handlers) Reset(c *fiber.Ctx) error {
	if !middleware.CheckAdminKey(h.AdminKeyHash, adminKey(c)) {
		return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
	}
	ctx := c.UserContext()
	keys := []string{middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime, middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq, middleware.KeyErrorLog}
	if err := h.Rdb.Del(ctx, keys...).Err(); err != nil {
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	if err := h.Rdb.Set(ctx, middleware.KeyStartTime, strconv.FormatInt(time.Now().UnixMilli(), 10), 0).Err(); err != nil {
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Stats reset successfully", fiber.Map{"success": true}, nil)
}

// JSON returns service status, runtime, traffic, dependencies and the steward status.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	result := healthsvc.CollectHealth(c.UserContext(), h.Rdb, h.DB, h.Steward)
	out := map[string]interface{}{
		"service":      serviceName,
		"status":       result.Status,
		"runtime":      result.Runtime,
		"traffic":      result.Traffic,
		"dependencies": result.Dependencies,
	}
	if result.Steward != "" {
		out["steward"] = result.Steward
	}
	return c.JSON(out)
}

// Errors returns the newest error log entries recorded by HealthMarker,
// ?limit= of them (default 50, at most 100).
func (h *Handlers) Errors(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultErrorLimit)
	if limit <= 0 || limit > maxErrorLimit {
		limit = defaultErrorLimit
	}
	entries, err := h.Rdb.LRange(c.UserContext(), middleware.KeyErrorLog, 0, int64(limit-1)).Result()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON([]interface{}{})
	}
	errors := make([]map[string]interface{}, 0, len(entries))
	for _, s := range entries {
		var m map[string]interface{}
		if _ = json.Unmarshal([]byte(s), &m); m != nil {
			errors = append(errors, m)
		}
	}
	return c.JSON(errors)
}
