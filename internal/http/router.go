// Package httpapi assembles the HTTP surface: middleware order, route
// groups, health and metrics endpoints. Business logic stays in the feature
// handlers.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"montoit/internal/platform/metrics"
	"montoit/internal/platform/middleware"
	"montoit/internal/verification/handler"
	"montoit/pkg/platform/httputil"
)

// HealthCheck reports whether a named dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps carries everything the router mounts.
type Deps struct {
	Verification *handler.Handler
	Validator    middleware.TokenValidator
	Metrics      *metrics.Metrics
	Logger       *slog.Logger

	// Health holds dependency probes by name, reported on /healthz.
	Health map[string]HealthCheck
}

// NewRouter builds the full route tree. Authenticated user routes live under
// /api/v1 behind bearer auth; the vendor callback is mounted in the same
// prefix but authenticates by HMAC signature instead.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestContext)
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	r.Get("/healthz", healthHandler(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(authed chi.Router) {
			authed.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
			deps.Verification.Register(authed)
		})
		api.Group(deps.Verification.RegisterPublic)
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		detail := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				detail[name] = err.Error()
				continue
			}
			detail[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status":       http.StatusText(status),
			"dependencies": detail,
		})
	}
}
