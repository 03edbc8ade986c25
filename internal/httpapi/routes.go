// Package httpapi exposes the Route entry point, the Model Registry, and the
// Guidance subsystem over HTTP, mirroring the teacher's routes.go
// dependency-injection Dependencies struct.
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/osqr-dev/osqr/internal/config"
	"github.com/osqr-dev/osqr/internal/events"
	"github.com/osqr-dev/osqr/internal/guidance"
	"github.com/osqr-dev/osqr/internal/health"
	"github.com/osqr-dev/osqr/internal/idempotency"
	"github.com/osqr-dev/osqr/internal/metrics"
	"github.com/osqr-dev/osqr/internal/models"
	"github.com/osqr-dev/osqr/internal/ratelimit"
	"github.com/osqr-dev/osqr/internal/routeapi"
	"github.com/osqr-dev/osqr/internal/stats"
)

// Dependencies bundles everything the HTTP handlers need. It is built once
// in the composition root and passed by value to MountRoutes.
type Dependencies struct {
	Router      *routeapi.Router
	Models      *models.Registry
	Guidance    *guidance.Store
	GuidanceCfg config.GuidanceConfig
	Health      *health.Tracker
	Stats       *stats.Collector
	EventBus    *events.Bus
	Metrics     *metrics.Registry

	// AdminToken gates every /v1/guidance/{project} endpoint, reads included. Empty = no auth,
	// appropriate for local/dev use only.
	AdminToken string

	IdempotencyCache *idempotency.Cache
	RateLimiter      *ratelimit.Limiter
}

// maxRequestBodySize caps POST/PUT/PATCH bodies at 2 MB; guidance rules and
// route prompts have no legitimate reason to exceed that.
const maxRequestBodySize = 2 << 20

func bodySizeLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MountRoutes wires every HTTP endpoint named in the external interfaces
// section onto r.
func MountRoutes(r chi.Router, d Dependencies) {
	r.Get("/healthz", HealthzHandler(d))
	r.Handle("/metrics", d.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(bodySizeLimit(maxRequestBodySize))
		if d.RateLimiter != nil {
			r.Use(d.RateLimiter.Middleware)
		}
		if d.IdempotencyCache != nil {
			r.Use(idempotency.Middleware(d.IdempotencyCache))
		}

		r.Post("/route", RouteHandler(d))
		r.Get("/models", ModelsListHandler(d))

		r.Route("/guidance/{project}", func(r chi.Router) {
			if d.AdminToken != "" {
				r.Use(adminAuthMiddleware(d.AdminToken))
			}
			r.Post("/items", GuidanceAddItemHandler(d))
			r.Patch("/items/{id}", GuidanceUpdateItemHandler(d))
			r.Delete("/items/{id}", GuidanceRemoveItemHandler(d))
			r.Post("/rollback", GuidanceRollbackHandler(d))
			r.Get("/context", GuidanceContextHandler(d))
			r.Post("/infer", GuidanceInferHandler(d))
			r.Get("/merged", GuidanceMergedHandler(d))
		})

		if d.EventBus != nil {
			r.Get("/events", SSEHandler(d.EventBus))
		}
	})
}

// adminAuthMiddleware requires a Bearer token equal to token on every
// request it wraps, using a constant-time comparison.
func adminAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				slog.Warn("admin auth: missing token", slog.String("path", r.URL.Path))
				http.Error(w, "missing admin token", http.StatusUnauthorized)
				return
			}
			provided := strings.TrimPrefix(auth, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				slog.Warn("admin auth: invalid token", slog.String("path", r.URL.Path))
				http.Error(w, "invalid admin token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
