package middleware

import (
	"steward-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// AdminKeyHeader carries the operator key on admin routes.
const AdminKeyHeader = "X-Admin-Key"

// CheckAdminKey compares key against a bcrypt hash. An empty hash disables
// the admin surface entirely.
func CheckAdminKey(hash, key string) bool {
	if hash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// RequireAdminKey guards operator routes. The key is read from the
// X-Admin-Key header, falling back to the "key" query parameter.
func RequireAdminKey(hash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(AdminKeyHeader)
		if key == "" {
			key = c.Query("key")
		}
		if !CheckAdminKey(hash, key) {
			return response.Error(c, "Forbidden", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}
