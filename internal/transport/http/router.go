// Package httptransport assembles the HTTP surface: middleware chain, domain
// handlers, health and metrics endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"greengate/pkg/platform/httputil"
	"greengate/pkg/platform/middleware/auth"
	"greengate/pkg/platform/middleware/metadata"
	"greengate/pkg/platform/middleware/requestid"
	"greengate/pkg/platform/middleware/requesttime"
)

// Registrar mounts a group of routes on the router. Each domain handler
// implements this.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports the health of one dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries everything the router needs. Public, Authed, and Staff route
// groups differ only in their auth requirements.
type Deps struct {
	Logger   *slog.Logger
	Verifier *auth.Verifier

	// Public routes run with optional auth: an attached identity is used when
	// present but never required.
	Public []Registrar
	// Authed routes refuse anonymous callers.
	Authed []Registrar

	// Health dependencies, keyed by name, reported by /healthz.
	Health map[string]HealthChecker
}

// NewRouter wires the middleware chain and all route groups.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", healthHandler(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(deps.Verifier))
		for _, reg := range deps.Public {
			reg.Register(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Verifier, deps.Logger))
		for _, reg := range deps.Authed {
			reg.Register(r)
		}
	})

	return r
}

// healthHandler reports per-dependency health. Any failing dependency flips
// the status code to 503 but the body still lists every check.
func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := http.StatusOK
		body := map[string]string{"status": "ok"}

		for name, check := range checks {
			if err := check.Health(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
