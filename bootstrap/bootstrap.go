package bootstrap

import (
	"net/http"

	"steward-backend/internal/config"
	"steward-backend/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for serverless hosting (the api handler imports this package, not internal).
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	ConfigureLogging(cfg)
	app, _, err := router.CreateApp(cfg)
	return app, err
}

// HTTPHandler is New wrapped as a net/http handler.
func HTTPHandler() (http.Handler, error) {
	app, err := New()
	if err != nil {
		return nil, err
	}
	return router.Handler(app), nil
}
