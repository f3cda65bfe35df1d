//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"boxinator/internal/audit"
	auditstore "boxinator/internal/audit/store"
	id "boxinator/pkg/domain"
	"boxinator/pkg/platform/tx"
	"boxinator/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditstore.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = auditstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "admin_actions", "shipment_status_history", "cost_audits", "shipments", "country_multiplier_log", "countries", "box_types")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestAdminActionRoundTripAndFilter() {
	ctx := context.Background()
	actor := id.UserID(uuid.New())
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, action := range []audit.Action{audit.ActionCreateCountry, audit.ActionUpdateCountryMultiplier, audit.ActionUpdateCountryMultiplier} {
		err := s.store.AppendAdminAction(ctx, audit.AdminAction{
			ID:         id.NewEntryID(),
			ActorID:    actor,
			Action:     action,
			TargetType: audit.TargetCountry,
			TargetID:   uuid.NewString(),
			Before:     []byte(`{"multiplier":"1.2"}`),
			After:      []byte(`{"multiplier":"1.5"}`),
			At:         base.Add(time.Duration(i) * time.Second),
		})
		s.Require().NoError(err)
	}

	page, err := s.store.ListAdminActions(ctx, audit.AdminLogFilter{
		Action:     audit.ActionUpdateCountryMultiplier,
		Pagination: id.Pagination{Limit: 10},
	})
	s.Require().NoError(err)
	s.Equal(2, page.Total)
	s.Require().Len(page.Items, 2)
	s.True(page.Items[0].At.After(page.Items[1].At), "newest first")
	s.JSONEq(`{"multiplier":"1.5"}`, string(page.Items[0].After))
}

func (s *PostgresStoreSuite) TestStatusHistoryInInsertionOrder() {
	ctx := context.Background()
	shipmentID := id.NewShipmentID()
	base := time.Now().UTC().Truncate(time.Millisecond)

	// Request times go backwards; the returned order must not.
	for i, status := range []string{"CREATED", "RECEIVED", "IN_TRANSIT"} {
		err := s.store.AppendStatusChange(ctx, audit.StatusChange{
			ID:         id.NewEntryID(),
			ShipmentID: shipmentID,
			Status:     status,
			At:         base.Add(-time.Duration(i) * time.Second),
		})
		s.Require().NoError(err)
	}

	history, err := s.store.ListStatusChanges(ctx, shipmentID)
	s.Require().NoError(err)
	s.Require().Len(history, 3)
	s.Equal([]string{"CREATED", "RECEIVED", "IN_TRANSIT"}, []string{history[0].Status, history[1].Status, history[2].Status})
}

func (s *PostgresStoreSuite) TestStatusChangeRolledBackWithTransaction() {
	runner := tx.NewSQLRunner(s.postgres.DB)
	shipmentID := id.NewShipmentID()

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		if err := s.store.AppendStatusChange(ctx, audit.StatusChange{
			ID:         id.NewEntryID(),
			ShipmentID: shipmentID,
			Status:     "CREATED",
			At:         time.Now(),
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Require().Error(err)

	history, err := s.store.ListStatusChanges(context.Background(), shipmentID)
	s.Require().NoError(err)
	s.Empty(history)
}
