//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"boxinator/internal/audit"
	auditstore "boxinator/internal/audit/store"
	"boxinator/internal/platform/logger"
	pricingmodels "boxinator/internal/pricing/models"
	pricingservice "boxinator/internal/pricing/service"
	pricingstore "boxinator/internal/pricing/store"
	profilestore "boxinator/internal/profile/store"
	"boxinator/internal/shipment/models"
	"boxinator/internal/shipment/service"
	shipmentstore "boxinator/internal/shipment/store"
	"boxinator/internal/shipment/tracking"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/sentinel"
	"boxinator/pkg/platform/tx"
	"boxinator/pkg/testutil/containers"
)

// scriptedTracking hands out ids from a list, then defers to the real
// generator.
type scriptedTracking struct {
	mu   sync.Mutex
	ids  []string
	real *tracking.Generator
}

func (g *scriptedTracking) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.ids) > 0 {
		next := g.ids[0]
		g.ids = g.ids[1:]
		return next, nil
	}
	return g.real.Generate()
}

type PostgresShipmentSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *shipmentstore.PostgresStore
	audit    *auditstore.PostgresStore
	prices   *pricingstore.PostgresStore
	profiles *profilestore.PostgresStore
	runner   *tx.SQLRunner
	tracking *scriptedTracking
	service  *service.Service

	admin   id.Actor
	user    id.Actor
	boxType *pricingmodels.BoxType
	country *pricingmodels.Country
}

func TestPostgresShipmentSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresShipmentSuite))
}

func (s *PostgresShipmentSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	db := s.postgres.DB
	s.store = shipmentstore.NewPostgres(db)
	s.audit = auditstore.NewPostgres(db)
	s.prices = pricingstore.NewPostgres(db)
	s.profiles = profilestore.NewPostgres(db)
	s.runner = tx.NewSQLRunner(db)
	s.admin, _ = id.NewUserActor(id.UserID(uuid.New()), id.RoleAdministrator, "ops@example.com")
	s.user, _ = id.NewUserActor(id.UserID(uuid.New()), id.RoleRegisteredUser, "jane@example.com")
}

func (s *PostgresShipmentSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx,
		"admin_actions", "shipment_status_history", "cost_audits", "shipments",
		"user_profiles", "country_multiplier_log", "countries", "box_types"))

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.boxType = &pricingmodels.BoxType{ID: id.NewBoxTypeID(), Name: "Premium", Size: "large", BaseCost: decimal.RequireFromString("49.90"), Active: true, CreatedAt: now, UpdatedAt: now}
	s.country = &pricingmodels.Country{ID: id.NewCountryID(), Name: "Norway", Code: "NO", Multiplier: decimal.RequireFromString("1.25"), Active: true, CreatedAt: now, UpdatedAt: now}
	s.Require().NoError(s.prices.CreateBoxType(ctx, s.boxType))
	s.Require().NoError(s.prices.CreateCountry(ctx, s.country))
	s.Require().NoError(s.profiles.Save(ctx, s.user.ID, models.Party{
		Name: "Jane Doe", Address: "Kungsgatan 3", City: "Gothenburg",
		PostalCode: "41119", Country: "Sweden", Email: "jane@example.com",
	}))

	recorder := audit.NewRecorder(s.audit, audit.WithLogger(logger.Discard()))
	catalog := pricingservice.NewCatalog(s.prices, s.runner, recorder, pricingservice.WithLogger(logger.Discard()))
	s.tracking = &scriptedTracking{real: tracking.NewGenerator()}
	s.service = service.New(s.store, recorder, pricingservice.NewCalculator(s.prices, nil), s.tracking, s.profiles, s.runner,
		service.WithLogger(logger.Discard()),
		service.WithCountryLookup(catalog),
	)
}

func (s *PostgresShipmentSuite) details() models.ShipmentDetails {
	return models.ShipmentDetails{
		Receiver: models.Party{
			Name: "Ola Nordmann", Address: "Karl Johans gate 1", City: "Oslo",
			PostalCode: "0154", Country: "Norway", Phone: "+4712345678",
		},
		BoxTypeID: s.boxType.ID,
		CountryID: s.country.ID,
	}
}

func (s *PostgresShipmentSuite) create(actor id.Actor) *models.Shipment {
	s.T().Helper()
	sh, err := s.service.CreateShipment(context.Background(), actor, models.AuthenticatedShipmentRequest{ShipmentDetails: s.details()})
	s.Require().NoError(err)
	return sh
}

func (s *PostgresShipmentSuite) TestCreatePersistsCostAndHistory() {
	ctx := context.Background()
	weight := decimal.RequireFromString("2.125")
	details := s.details()
	details.Weight = &weight

	sh, err := s.service.CreateShipment(ctx, s.user, models.AuthenticatedShipmentRequest{ShipmentDetails: details})
	s.Require().NoError(err)

	got, err := s.store.FindByID(ctx, sh.ID)
	s.Require().NoError(err)
	s.Equal("62.38", got.Cost.FinalCost.StringFixed(2))
	s.True(got.Cost.Multiplier.Equal(decimal.RequireFromString("1.25")))
	s.True(got.Weight.Equal(weight))
	s.Equal("jane@example.com", got.Sender.Email)
	s.Equal(models.StatusCreated, got.Status)

	audits, err := s.store.ListCostAudits(ctx, sh.ID)
	s.Require().NoError(err)
	s.Require().Len(audits, 1)
	s.True(audits[0].FinalCost.Equal(got.Cost.FinalCost))

	byTracking, err := s.store.FindByTrackingID(ctx, sh.TrackingID)
	s.Require().NoError(err)
	s.Equal(sh.ID, byTracking.ID)
}

func (s *PostgresShipmentSuite) TestTrackingCollisionRetriesInFreshTransaction() {
	first := s.create(s.user)
	s.tracking.ids = []string{first.TrackingID}

	second := s.create(s.user)
	s.NotEqual(first.TrackingID, second.TrackingID)

	page, err := s.store.List(context.Background(), models.Filter{})
	s.Require().NoError(err)
	s.Equal(2, page.Total)
}

func (s *PostgresShipmentSuite) TestDuplicateTrackingIsAlreadyUsed() {
	ctx := context.Background()
	sh := s.create(s.user)
	dup := *sh
	dup.ID = id.NewShipmentID()
	s.ErrorIs(s.store.Create(ctx, &dup), sentinel.ErrAlreadyUsed)
}

func (s *PostgresShipmentSuite) TestUpdateRollsBackWhenHistoryFails() {
	ctx := context.Background()
	sh := s.create(s.user)

	// A status change referencing a missing shipment fails the FK and must
	// take the status update down with it.
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateStatus(ctx, sh.ID, models.StatusReceived, time.Now()); err != nil {
			return err
		}
		return s.audit.AppendStatusChange(ctx, audit.StatusChange{
			ID: id.NewEntryID(), ShipmentID: id.NewShipmentID(), Status: "RECEIVED", At: time.Now(),
		})
	})
	s.Require().Error(err)

	got, err := s.store.FindByID(ctx, sh.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCreated, got.Status)
}

func (s *PostgresShipmentSuite) TestLifecycleAndDeleteKeepsHistory() {
	ctx := context.Background()
	sh := s.create(s.user)

	for _, next := range []models.Status{models.StatusReceived, models.StatusInTransit} {
		_, err := s.service.UpdateStatus(ctx, s.admin, sh.ID, next, "")
		s.Require().NoError(err)
	}
	view, err := s.service.TrackShipment(ctx, sh.TrackingID)
	s.Require().NoError(err)
	s.Len(view.History, 3)
	s.Equal(models.StatusInTransit, view.Status)

	s.Require().NoError(s.service.DeleteShipment(ctx, s.admin, sh.ID))
	_, err = s.store.FindByID(ctx, sh.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	history, err := s.audit.ListStatusChanges(ctx, sh.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 3, "history outlives the shipment")
	s.Equal(string(models.StatusInTransit), history[2].Status)

	log, err := s.audit.ListAdminActions(ctx, audit.AdminLogFilter{Action: audit.ActionDeleteShipment})
	s.Require().NoError(err)
	s.Require().Len(log.Items, 1)
	s.Equal(sh.ID.String(), log.Items[0].TargetID)
	s.NotEmpty(log.Items[0].Before)
}

func (s *PostgresShipmentSuite) TestConcurrentCancellationsHaveOneWinner() {
	ctx := context.Background()
	sh := s.create(s.user)

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.UpdateStatus(ctx, s.user, sh.ID, models.StatusCancelled, "")
			switch {
			case err == nil:
				wins.Add(1)
			case dErrors.HasCode(err, dErrors.CodeIllegalTransition):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(7), conflicts.Load())

	history, err := s.audit.ListStatusChanges(ctx, sh.ID)
	s.Require().NoError(err)
	s.Len(history, 2)
}

func (s *PostgresShipmentSuite) TestListFiltersAndStats() {
	ctx := context.Background()
	other, _ := id.NewUserActor(id.UserID(uuid.New()), id.RoleRegisteredUser, "other@example.com")
	s.Require().NoError(s.profiles.Save(ctx, other.ID, models.Party{
		Name: "Other", Address: "Drottninggatan 1", City: "Stockholm",
		PostalCode: "11151", Country: "Sweden", Email: "other@example.com",
	}))

	mine := s.create(s.user)
	s.create(s.user)
	s.create(other)
	_, err := s.service.UpdateStatus(ctx, s.user, mine.ID, models.StatusCancelled, "changed my mind")
	s.Require().NoError(err)

	page, err := s.service.ListShipments(ctx, s.user, models.Filter{Pagination: id.Pagination{Limit: 1}})
	s.Require().NoError(err)
	s.Equal(2, page.Total)
	s.Len(page.Items, 1)

	cancelled := models.StatusCancelled
	page, err = s.service.ListShipments(ctx, s.admin, models.Filter{Status: &cancelled})
	s.Require().NoError(err)
	s.Require().Equal(1, page.Total)
	s.Equal(mine.ID, page.Items[0].ID)

	stats, err := s.service.Stats(ctx, s.admin, nil, nil)
	s.Require().NoError(err)
	s.Equal(3, stats.Total)
	s.Equal("187.14", stats.Revenue.StringFixed(2))
}
