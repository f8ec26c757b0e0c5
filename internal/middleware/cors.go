package middleware

import (
	"strings"

	"steward-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const devPasswordHeader = "dev-password"

var corsAllowHeaders = strings.Join([]string{"Content-Type", devPasswordHeader, AdminKeyHeader, traceIDHeader}, ", ")

// CORSConfig holds the allowed origin suffixes and the dev bypass password.
type CORSConfig struct {
	// AllowedSuffix is a comma separated list, e.g. ".steward.art,.vercel.app".
	AllowedSuffix string
	DevPassword   string
}

func (cfg CORSConfig) suffixes() []string {
	var out []string
	for _, s := range strings.Split(cfg.AllowedSuffix, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isLocalOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")
}

// CORS allows requests without an Origin, origins matching one of the
// configured suffixes, and callers presenting the dev password. Local
// origins pass preflight so wallets on a dev frontend can sign in.
func CORS(cfg CORSConfig) fiber.Handler {
	suffixes := cfg.suffixes()
	allowed := func(c *fiber.Ctx, origin string) bool {
		lower := strings.ToLower(origin)
		for _, s := range suffixes {
			if strings.HasSuffix(lower, s) {
				return true
			}
		}
		return cfg.DevPassword != "" && c.Get(devPasswordHeader) == cfg.DevPassword
	}

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" {
			return c.Next()
		}
		preflight := c.Method() == fiber.MethodOptions
		if preflight && isLocalOrigin(origin) {
			setCORSHeaders(c, origin)
			return c.SendStatus(fiber.StatusNoContent)
		}
		if !allowed(c, origin) {
			return response.Forbidden(c, "Not allowed by CORS")
		}
		setCORSHeaders(c, origin)
		if preflight {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

func setCORSHeaders(c *fiber.Ctx, origin string) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
	c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
	c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
	c.Set(fiber.HeaderAccessControlAllowMethods, "GET, POST, DELETE, OPTIONS")
	c.Set(fiber.HeaderAccessControlExposeHeaders, traceIDHeader)
	c.Set(fiber.HeaderVary, fiber.HeaderOrigin)
}
