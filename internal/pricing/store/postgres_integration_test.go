//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"boxinator/internal/audit"
	"boxinator/internal/pricing/models"
	"boxinator/internal/pricing/service"
	pricingstore "boxinator/internal/pricing/store"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/sentinel"
	"boxinator/pkg/platform/tx"
	"boxinator/pkg/testutil/containers"
)

type failingRecorder struct{}

func (failingRecorder) AppendAdminAction(context.Context, audit.AdminAction) error {
	return dErrors.New(dErrors.CodeInternal, "audit unavailable")
}

type nopRecorder struct{}

func (nopRecorder) AppendAdminAction(context.Context, audit.AdminAction) error { return nil }

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *pricingstore.PostgresStore
	runner   *tx.SQLRunner
	admin    id.Actor
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = pricingstore.NewPostgres(s.postgres.DB)
	s.runner = tx.NewSQLRunner(s.postgres.DB)
	s.admin, _ = id.NewUserActor(id.UserID(uuid.New()), id.RoleAdministrator, "ops@example.com")
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "admin_actions", "shipment_status_history", "cost_audits", "shipments", "country_multiplier_log", "countries", "box_types")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newCountry(code, multiplier string) *models.Country {
	now := time.Now().UTC().Truncate(time.Microsecond)
	c := &models.Country{
		ID:         id.NewCountryID(),
		Name:       "Country " + code,
		Code:       code,
		Multiplier: decimal.RequireFromString(multiplier),
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.Require().NoError(s.store.CreateCountry(context.Background(), c))
	return c
}

func (s *PostgresStoreSuite) TestRoundTripPreservesDecimals() {
	ctx := context.Background()
	country := s.newCountry("NO", "1.333")
	box := &models.BoxType{ID: id.NewBoxTypeID(), Name: "Basic", Size: "small", BaseCost: decimal.RequireFromString("15.99"), Active: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.Require().NoError(s.store.CreateBoxType(ctx, box))

	gotCountry, err := s.store.FindCountry(ctx, country.ID)
	s.Require().NoError(err)
	s.True(gotCountry.Multiplier.Equal(country.Multiplier))

	gotBox, err := s.store.FindBoxType(ctx, box.ID)
	s.Require().NoError(err)
	s.Equal("21.31", models.FinalCost(gotBox.BaseCost, gotCountry.Multiplier).StringFixed(2))
}

func (s *PostgresStoreSuite) TestUniqueCodeAndRowCountChecks() {
	ctx := context.Background()
	s.newCountry("SE", "1.0")

	dup := &models.Country{ID: id.NewCountryID(), Name: "Other", Code: "SE", Multiplier: decimal.NewFromInt(2), Active: true}
	s.ErrorIs(s.store.CreateCountry(ctx, dup), sentinel.ErrAlreadyUsed)

	_, err := s.store.FindCountry(ctx, id.NewCountryID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.UpdateCountryMultiplier(ctx, id.NewCountryID(), decimal.NewFromInt(2), time.Now())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestMultiplierUpdateRollsBackWhenAuditFails() {
	ctx := context.Background()
	country := s.newCountry("DK", "1.2")
	catalog := service.NewCatalog(s.store, s.runner, failingRecorder{})

	_, err := catalog.UpdateCountryMultiplier(ctx, s.admin, country.ID, decimal.RequireFromString("1.9"), "")
	s.Require().Error(err)

	stored, err := s.store.FindCountry(ctx, country.ID)
	s.Require().NoError(err)
	s.Equal("1.2", stored.Multiplier.String())
	changes, err := s.store.ListMultiplierChanges(ctx, country.ID)
	s.Require().NoError(err)
	s.Empty(changes)
}

// TestConcurrentMultiplierUpdatesSerialize verifies the row lock: every
// logged Previous equals the value the prior writer installed.
func (s *PostgresStoreSuite) TestConcurrentMultiplierUpdatesSerialize() {
	ctx := context.Background()
	country := s.newCountry("FI", "1.0")
	catalog := service.NewCatalog(s.store, s.runner, nopRecorder{})
	const writers = 20

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m := decimal.NewFromInt(int64(n + 1))
			if _, err := catalog.UpdateCountryMultiplier(ctx, s.admin, country.ID, m, ""); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Failf("unexpected error", "%v", err)
	}

	changes, err := s.store.ListMultiplierChanges(ctx, country.ID)
	s.Require().NoError(err)
	s.Require().Len(changes, writers)
	seen := map[string]bool{"1": true}
	for _, c := range changes {
		s.True(seen[c.Previous.String()], "previous %s was never installed", c.Previous)
		seen[c.New.String()] = true
	}
}

func (s *PostgresStoreSuite) TestListActiveSortedByName() {
	ctx := context.Background()
	s.newCountry("NO", "1.3")
	s.newCountry("AT", "1.1")
	inactive := &models.Country{ID: id.NewCountryID(), Name: "AAA Closed", Code: "ZZ", Multiplier: decimal.NewFromInt(1)}
	s.Require().NoError(s.store.CreateCountry(ctx, inactive))

	countries, err := s.store.ListActiveCountries(ctx)
	s.Require().NoError(err)
	s.Require().Len(countries, 2)
	s.Equal("AT", countries[0].Code)
	s.Equal("NO", countries[1].Code)
}
