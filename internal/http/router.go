package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"boxinator/internal/platform/metrics"
	platformmw "boxinator/internal/platform/middleware"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/httputil"
	"boxinator/pkg/platform/middleware/admin"
	"boxinator/pkg/platform/middleware/auth"
	"boxinator/pkg/platform/middleware/metadata"
	request "boxinator/pkg/platform/middleware/request"
)

// Module mounts one bounded context's routes. Register receives the public
// router, RegisterAdmin a group already restricted to administrators.
type Module interface {
	Register(r chi.Router)
}

type AdminModule interface {
	RegisterAdmin(r chi.Router)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the router needs.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Tokens         auth.ActorResolver
	RequestTimeout time.Duration
	Health         map[string]HealthCheck
	Modules        []Module
	AdminModules   []AdminModule
}

// NewRouter wires the middleware chain, the public and admin routes, and the
// operational endpoints.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(request.Recovery(d.Logger))
	r.Use(request.Logger(d.Logger))
	r.Use(platformmw.LatencyMiddleware(d.Metrics))
	r.Use(metadata.ClientMetadata)
	r.Use(metadata.RequestTime)

	r.Get("/healthz", healthHandler(d.Health))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if d.RequestTimeout > 0 {
			r.Use(request.Timeout(d.RequestTimeout))
		}
		r.Use(request.ContentTypeJSON)
		r.Use(auth.ResolveActor(d.Tokens, d.Logger))

		for _, m := range d.Modules {
			m.Register(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdministrator(d.Logger))
			for _, m := range d.AdminModules {
				m.RegisterAdmin(r)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
