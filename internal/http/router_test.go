package httpapi

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxinator/internal/identity"
	"boxinator/internal/platform/logger"
	"boxinator/internal/platform/metrics"
	id "boxinator/pkg/domain"
	"boxinator/pkg/platform/httputil"
	"boxinator/pkg/requestcontext"
	"boxinator/pkg/testutil"
)

type whoami struct{}

func (whoami) Register(r chi.Router) {
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"role": requestcontext.Actor(r.Context()).Role.String()})
	})
}

func (whoami) RegisterAdmin(r chi.Router) {
	r.Get("/admin/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestNewRouter(t *testing.T) {
	tokens := identity.NewTokenService("test-key", "boxinator", "boxinator-api")
	reg := prometheus.NewRegistry()
	healthy := true

	router := NewRouter(Deps{
		Logger:         logger.Discard(),
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		Tokens:         tokens,
		RequestTimeout: time.Second,
		Health: map[string]HealthCheck{
			"database": func(context.Context) error {
				if healthy {
					return nil
				}
				return errors.New("connection refused")
			},
		},
		Modules:      []Module{whoami{}},
		AdminModules: []AdminModule{whoami{}},
	})

	bearer := func(t *testing.T, role id.Role) string {
		t.Helper()
		token, err := tokens.IssueToken(id.UserID(uuid.New()), role.String(), "someone@example.com", time.Hour)
		require.NoError(t, err)
		return "Bearer " + token
	}

	t.Run("missing token is a guest", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/whoami"))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "role", id.RoleGuest.String())
	})

	t.Run("valid token resolves the actor", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/whoami")
		req.Header.Set("Authorization", bearer(t, id.RoleRegisteredUser))
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "role", id.RoleRegisteredUser.String())
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/whoami")
		req.Header.Set("Authorization", "Bearer not-a-token")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("admin routes require an administrator", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/admin/ping"))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)

		req := testutil.NewRequest(t, http.MethodGet, "/admin/ping")
		req.Header.Set("Authorization", bearer(t, id.RoleRegisteredUser))
		testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusForbidden)

		req = testutil.NewRequest(t, http.MethodGet, "/admin/ping")
		req.Header.Set("Authorization", bearer(t, id.RoleAdministrator))
		testutil.AssertStatus(t, testutil.DoRequest(router, req), http.StatusNoContent)
	})

	t.Run("unknown routes are not found", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/nowhere"))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("health reflects dependency checks", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "ok")

		healthy = false
		defer func() { healthy = true }()
		rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		testutil.AssertJSONContains(t, rr, "status", "degraded")
	})

	t.Run("metrics are exposed with route labels", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		testutil.AssertStatusOK(t, rr)
		assert.Contains(t, string(testutil.ReadBody(t, rr)), `route="/whoami"`)
	})
}
