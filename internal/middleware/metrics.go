package middleware

import (
	"strconv"

	"steward-backend/internal/observability/metrics"

	"github.com/gofiber/fiber/v2"
)

// Metrics counts requests by method and final status.
func Metrics(m *metrics.StewardMetrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		m.ObserveHTTPRequest(c.Method(), strconv.Itoa(status))
		return err
	}
}
