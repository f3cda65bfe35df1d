package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxinator/internal/audit"
	auditstore "boxinator/internal/audit/store"
	"boxinator/internal/platform/logger"
	id "boxinator/pkg/domain"
	"boxinator/pkg/testutil"
)

func TestHandleAdminLog(t *testing.T) {
	ctx := context.Background()
	recorder := audit.NewRecorder(auditstore.NewInMemoryStore(), audit.WithLogger(logger.Discard()))

	alice := id.UserID(uuid.New())
	bob := id.UserID(uuid.New())
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []audit.AdminAction{
		{ActorID: alice, Action: audit.ActionCreateCountry, TargetType: audit.TargetCountry, TargetID: "c-1", At: base},
		{ActorID: bob, Action: audit.ActionUpdateCountryMultiplier, TargetType: audit.TargetCountry, TargetID: "c-1", At: base.Add(time.Hour)},
		{ActorID: alice, Action: audit.ActionDeleteShipment, TargetType: audit.TargetShipment, TargetID: "s-1", At: base.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, recorder.AppendAdminAction(ctx, e))
	}

	router := chi.NewRouter()
	New(recorder, logger.Discard()).RegisterAdmin(router)

	t.Run("lists newest first", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/admin/audit-log"))
		testutil.AssertStatusOK(t, rr)

		resp := testutil.UnmarshalResponse[AdminLogResponse](t, rr)
		require.Len(t, resp.Items, 3)
		assert.Equal(t, 3, resp.Total)
		assert.Equal(t, audit.ActionDeleteShipment, resp.Items[0].Action)
		assert.Equal(t, 20, resp.Limit)
	})

	t.Run("filters by actor and action", func(t *testing.T) {
		path := "/admin/audit-log?actor_id=" + alice.String() + "&action=create_country"
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
		testutil.AssertStatusOK(t, rr)

		resp := testutil.UnmarshalResponse[AdminLogResponse](t, rr)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "c-1", resp.Items[0].TargetID)
	})

	t.Run("filters by window and target type", func(t *testing.T) {
		path := "/admin/audit-log?target_type=country&from=" + base.Add(30*time.Minute).Format(time.RFC3339)
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
		testutil.AssertStatusOK(t, rr)

		resp := testutil.UnmarshalResponse[AdminLogResponse](t, rr)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, audit.ActionUpdateCountryMultiplier, resp.Items[0].Action)
	})

	t.Run("empty result is an empty list", func(t *testing.T) {
		path := "/admin/audit-log?actor_id=" + uuid.NewString()
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "total", float64(0))
	})

	t.Run("malformed parameters are reported together", func(t *testing.T) {
		path := "/admin/audit-log?actor_id=nope&from=yesterday&limit=-1"
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
		testutil.AssertStatusAndViolations(t, rr, http.StatusBadRequest, "actor_id", "from", "limit")
	})

	t.Run("inverted window is rejected", func(t *testing.T) {
		path := "/admin/audit-log?from=" + base.Add(time.Hour).Format(time.RFC3339) + "&to=" + base.Format(time.RFC3339)
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
		testutil.AssertStatusAndViolations(t, rr, http.StatusBadRequest, "from")
	})
}
