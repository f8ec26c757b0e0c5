package handler

import (
	"net/http"
	"sync"

	"steward-backend/bootstrap"

	"github.com/rs/zerolog/log"
)

var (
	initOnce sync.Once
	app      http.Handler
	initErr  error
)

// Handler is the serverless entry point. All requests are rewritten here.
// The app is built on the first request so a bad configuration answers 503
// instead of crashing the function. The keeper does not run in this mode;
// POST /api/v1/steward/collect from a scheduler takes its place.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		app, initErr = bootstrap.HTTPHandler()
		if initErr != nil {
			log.Error().Err(initErr).Msg("app create failed")
		}
	})
	if initErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error","error":{"message":"Service unavailable","statusCode":503,"details":{}}}`))
		return
	}
	r.RequestURI = r.URL.String()
	app.ServeHTTP(w, r)
}
