package middleware

import (
	"steward-backend/internal/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

const (
	userLocal   = "user"
	callerLocal = "caller"
)

// RequireAuth ensures a signed-in address is in the session. Returns 401 with
// the standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		addr, ok := Caller(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		c.Locals(callerLocal, addr)
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

// Caller returns the address the session is signed in as.
func Caller(c *fiber.Ctx) (common.Address, bool) {
	if addr, ok := c.Locals(callerLocal).(common.Address); ok {
		return addr, true
	}
	m, ok := GetUser(c).(map[string]interface{})
	if !ok {
		return common.Address{}, false
	}
	raw, _ := m["address"].(string)
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}
