package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"boxinator/internal/audit"
	auditstore "boxinator/internal/audit/store"
	"boxinator/internal/pricing/models"
	"boxinator/internal/pricing/service"
	pricingstore "boxinator/internal/pricing/store"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/tx"
	"boxinator/pkg/requestcontext"
)

type fakeInvalidator struct {
	mu        sync.Mutex
	countries []id.CountryID
	boxTypes  []id.BoxTypeID
}

func (f *fakeInvalidator) InvalidateCountry(_ context.Context, countryID id.CountryID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countries = append(f.countries, countryID)
}

func (f *fakeInvalidator) InvalidateBoxType(_ context.Context, boxTypeID id.BoxTypeID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boxTypes = append(f.boxTypes, boxTypeID)
}

type CatalogSuite struct {
	suite.Suite
	store      *pricingstore.InMemoryStore
	auditStore *auditstore.InMemoryStore
	cache      *fakeInvalidator
	catalog    *service.Catalog
	calculator *service.Calculator
	admin      id.Actor
	user       id.Actor
	now        time.Time
}

func TestCatalogSuite(t *testing.T) {
	suite.Run(t, new(CatalogSuite))
}

func (s *CatalogSuite) SetupTest() {
	s.store = pricingstore.NewInMemoryStore()
	s.auditStore = auditstore.NewInMemoryStore()
	s.cache = &fakeInvalidator{}
	recorder := audit.NewRecorder(s.auditStore)
	s.catalog = service.NewCatalog(s.store, tx.NewMemoryRunner(), recorder, service.WithCacheInvalidator(s.cache))
	s.calculator = service.NewCalculator(s.store, nil)

	var err error
	s.admin, err = id.NewUserActor(id.UserID(uuid.New()), id.RoleAdministrator, "admin@example.com")
	s.Require().NoError(err)
	s.user, err = id.NewUserActor(id.UserID(uuid.New()), id.RoleRegisteredUser, "user@example.com")
	s.Require().NoError(err)
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *CatalogSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *CatalogSuite) seedCountry(name, code, multiplier string, active bool) *models.Country {
	c := &models.Country{
		ID:         id.NewCountryID(),
		Name:       name,
		Code:       code,
		Multiplier: decimal.RequireFromString(multiplier),
		Active:     active,
		CreatedAt:  s.now,
		UpdatedAt:  s.now,
	}
	s.Require().NoError(s.store.CreateCountry(context.Background(), c))
	return c
}

func (s *CatalogSuite) seedBoxType(name, baseCost string, active bool) *models.BoxType {
	b := &models.BoxType{
		ID:        id.NewBoxTypeID(),
		Name:      name,
		Size:      "medium",
		BaseCost:  decimal.RequireFromString(baseCost),
		Active:    active,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.Require().NoError(s.store.CreateBoxType(context.Background(), b))
	return b
}

func (s *CatalogSuite) TestCalculateExactCents() {
	cases := []struct {
		name       string
		code       string
		baseCost   string
		multiplier string
		want       string
	}{
		{"simple multiple", "AA", "25.00", "1.50", "37.50"},
		{"rounds half up", "AB", "15.99", "1.333", "21.31"},
		{"identity multiplier", "AC", "10.00", "1.0", "10.00"},
		{"half cent rounds away", "AD", "0.05", "1.5", "0.08"},
		{"free box", "AE", "0", "2.0", "0.00"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			box := s.seedBoxType("Box "+uuid.NewString(), tc.baseCost, true)
			country := s.seedCountry("Country "+tc.code, tc.code, tc.multiplier, true)

			breakdown, err := s.calculator.Calculate(context.Background(), box.ID, country.ID)
			s.Require().NoError(err)
			s.Equal(tc.want, breakdown.FinalCost.StringFixed(2))
			s.Equal(models.Currency, breakdown.Currency)
			s.Equal(box.Name, breakdown.BoxTypeName)
			s.Equal(country.Name, breakdown.CountryName)
		})
	}
}

func (s *CatalogSuite) TestCalculateDeliveryEstimate() {
	box := s.seedBoxType("Basic", "10.00", true)
	abroad := s.seedCountry("Norway", "NO", "1.3", true)
	home := &models.Country{ID: id.NewCountryID(), Name: "Sweden", Code: "SE", Multiplier: decimal.NewFromInt(1), Active: true, IsSource: true}
	s.Require().NoError(s.store.CreateCountry(context.Background(), home))

	breakdown, err := s.calculator.Calculate(context.Background(), box.ID, home.ID)
	s.Require().NoError(err)
	s.Equal(models.EstimatedDelivery{MinDays: 2, MaxDays: 5}, breakdown.EstimatedDelivery)

	breakdown, err = s.calculator.Calculate(context.Background(), box.ID, abroad.ID)
	s.Require().NoError(err)
	s.Equal(models.EstimatedDelivery{MinDays: 7, MaxDays: 14}, breakdown.EstimatedDelivery)
}

func (s *CatalogSuite) TestCalculateInvalidReferences() {
	box := s.seedBoxType("Basic", "10.00", true)
	inactiveBox := s.seedBoxType("Retired", "10.00", false)
	country := s.seedCountry("Norway", "NO", "1.3", true)
	inactiveCountry := s.seedCountry("Atlantis", "AT", "9.9", false)

	s.Run("both unknown lists both fields", func() {
		_, err := s.calculator.Calculate(context.Background(), id.NewBoxTypeID(), id.NewCountryID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidReference))
		violations := dErrors.ViolationsOf(err)
		s.Require().Len(violations, 2)
		s.Equal("box_type_id", violations[0].Field)
		s.Equal("country_id", violations[1].Field)
	})

	s.Run("inactive box type", func() {
		_, err := s.calculator.Calculate(context.Background(), inactiveBox.ID, country.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidReference))
		s.Len(dErrors.ViolationsOf(err), 1)
	})

	s.Run("inactive country", func() {
		_, err := s.calculator.Calculate(context.Background(), box.ID, inactiveCountry.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidReference))
		s.Equal("country_id", dErrors.ViolationsOf(err)[0].Field)
	})

	s.Run("nil ids", func() {
		_, err := s.calculator.Calculate(context.Background(), id.BoxTypeID{}, id.CountryID{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidReference))
		s.Len(dErrors.ViolationsOf(err), 2)
	})
}

func (s *CatalogSuite) TestListActiveSortedByName() {
	s.seedCountry("Norway", "NO", "1.3", true)
	s.seedCountry("Denmark", "DK", "1.2", true)
	s.seedCountry("Finland", "FI", "1.4", false)

	countries, err := s.catalog.ListActiveCountries(context.Background())
	s.Require().NoError(err)
	s.Require().Len(countries, 2)
	s.Equal("Denmark", countries[0].Name)
	s.Equal("Norway", countries[1].Name)
}

func (s *CatalogSuite) TestGetNotFound() {
	_, err := s.catalog.GetCountry(context.Background(), id.NewCountryID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.catalog.GetBoxType(context.Background(), id.NewBoxTypeID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CatalogSuite) TestUpdateCountryMultiplier() {
	country := s.seedCountry("Norway", "NO", "1.3", true)
	newMultiplier := decimal.RequireFromString("1.45")

	updated, err := s.catalog.UpdateCountryMultiplier(s.ctx(), s.admin, country.ID, newMultiplier, "fuel surcharge")
	s.Require().NoError(err)
	s.True(updated.Multiplier.Equal(newMultiplier))

	stored, err := s.store.FindCountry(context.Background(), country.ID)
	s.Require().NoError(err)
	s.True(stored.Multiplier.Equal(newMultiplier))

	changes, err := s.catalog.MultiplierHistory(context.Background(), s.admin, country.ID)
	s.Require().NoError(err)
	s.Require().Len(changes, 1)
	s.Equal("1.3", changes[0].Previous.String())
	s.Equal("1.45", changes[0].New.String())
	s.Equal(s.admin.ID, changes[0].ActorID)
	s.Equal("fuel surcharge", changes[0].Reason)

	page, err := s.auditStore.ListAdminActions(context.Background(), audit.AdminLogFilter{})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 1)
	action := page.Items[0]
	s.Equal(audit.ActionUpdateCountryMultiplier, action.Action)
	s.Equal(country.ID.String(), action.TargetID)
	s.JSONEq(`{"multiplier":"1.3"}`, string(action.Before))
	s.JSONEq(`{"multiplier":"1.45"}`, string(action.After))

	s.Equal([]id.CountryID{country.ID}, s.cache.countries)
}

func (s *CatalogSuite) TestUpdateCountryMultiplierValidation() {
	country := s.seedCountry("Norway", "NO", "1.3", true)

	s.Run("non admin forbidden", func() {
		_, err := s.catalog.UpdateCountryMultiplier(s.ctx(), s.user, country.ID, decimal.RequireFromString("2"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("guest forbidden", func() {
		_, err := s.catalog.UpdateCountryMultiplier(s.ctx(), id.Guest(), country.ID, decimal.RequireFromString("2"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("zero rejected", func() {
		_, err := s.catalog.UpdateCountryMultiplier(s.ctx(), s.admin, country.ID, decimal.Zero, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("negative rejected", func() {
		_, err := s.catalog.UpdateCountryMultiplier(s.ctx(), s.admin, country.ID, decimal.RequireFromString("-1"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("finer than stored precision rejected", func() {
		_, err := s.catalog.UpdateCountryMultiplier(s.ctx(), s.admin, country.ID, decimal.RequireFromString("1.33333"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("multiplier", dErrors.ViolationsOf(err)[0].Field)
	})

	s.Run("unchanged rejected", func() {
		_, err := s.catalog.UpdateCountryMultiplier(s.ctx(), s.admin, country.ID, decimal.RequireFromString("1.30"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown country", func() {
		_, err := s.catalog.UpdateCountryMultiplier(s.ctx(), s.admin, id.NewCountryID(), decimal.RequireFromString("2"), "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	changes, err := s.store.ListMultiplierChanges(context.Background(), country.ID)
	s.Require().NoError(err)
	s.Empty(changes)
	s.Empty(s.cache.countries)
}

func (s *CatalogSuite) TestUpdateCountryMultiplierIsAtomic() {
	country := s.seedCountry("Norway", "NO", "1.3", true)
	newMultiplier := decimal.RequireFromString("1.5")

	s.Run("admin action failure rolls back the change log and the multiplier", func() {
		s.auditStore.FailNext("admin_action", errors.New("connection reset"))

		_, err := s.catalog.UpdateCountryMultiplier(s.ctx(), s.admin, country.ID, newMultiplier, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		stored, err := s.store.FindCountry(context.Background(), country.ID)
		s.Require().NoError(err)
		s.Equal("1.3", stored.Multiplier.String())
		changes, err := s.store.ListMultiplierChanges(context.Background(), country.ID)
		s.Require().NoError(err)
		s.Empty(changes)
	})

	s.Run("multiplier write failure leaves no log rows", func() {
		s.store.FailNext("update_multiplier", errors.New("deadlock"))

		_, err := s.catalog.UpdateCountryMultiplier(s.ctx(), s.admin, country.ID, newMultiplier, "")
		s.Require().Error(err)

		changes, err := s.store.ListMultiplierChanges(context.Background(), country.ID)
		s.Require().NoError(err)
		s.Empty(changes)
		page, err := s.auditStore.ListAdminActions(context.Background(), audit.AdminLogFilter{})
		s.Require().NoError(err)
		s.Zero(page.Total)
	})

	s.Empty(s.cache.countries, "cache is only invalidated after commit")
}

func (s *CatalogSuite) TestConcurrentMultiplierUpdatesLogEveryPriorValue() {
	country := s.seedCountry("Norway", "NO", "1.0", true)
	const writers = 10

	var wg sync.WaitGroup
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m := decimal.NewFromInt(int64(n)).Add(decimal.RequireFromString("1.0"))
			_, _ = s.catalog.UpdateCountryMultiplier(s.ctx(), s.admin, country.ID, m, "")
		}(i)
	}
	wg.Wait()

	changes, err := s.store.ListMultiplierChanges(context.Background(), country.ID)
	s.Require().NoError(err)
	s.Require().Len(changes, writers)
	// Each change's Previous is the prior change's New.
	s.Equal("1", changes[0].Previous.String())
	for i := 1; i < len(changes); i++ {
		s.True(changes[i].Previous.Equal(changes[i-1].New), "change %d previous should chain", i)
	}
	stored, err := s.store.FindCountry(context.Background(), country.ID)
	s.Require().NoError(err)
	s.True(stored.Multiplier.Equal(changes[len(changes)-1].New))
}

func (s *CatalogSuite) TestCreateCountry() {
	req := models.CreateCountryRequest{Name: " Iceland ", Code: "is", Multiplier: decimal.RequireFromString("1.8")}

	created, err := s.catalog.CreateCountry(s.ctx(), s.admin, req)
	s.Require().NoError(err)
	s.Equal("Iceland", created.Name)
	s.Equal("IS", created.Code)
	s.True(created.Active)

	s.Run("duplicate code conflicts", func() {
		_, err := s.catalog.CreateCountry(s.ctx(), s.admin, models.CreateCountryRequest{Name: "Other", Code: "IS", Multiplier: decimal.RequireFromString("1.1")})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("invalid payload lists every field", func() {
		_, err := s.catalog.CreateCountry(s.ctx(), s.admin, models.CreateCountryRequest{Code: "1"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Len(dErrors.ViolationsOf(err), 3)
	})

	s.Run("non admin forbidden", func() {
		_, err := s.catalog.CreateCountry(s.ctx(), s.user, req)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	page, err := s.auditStore.ListAdminActions(context.Background(), audit.AdminLogFilter{Action: audit.ActionCreateCountry})
	s.Require().NoError(err)
	s.Equal(1, page.Total)
}

func (s *CatalogSuite) TestCreateBoxType() {
	created, err := s.catalog.CreateBoxType(s.ctx(), s.admin, models.CreateBoxTypeRequest{Name: "Premium", Size: "large", BaseCost: decimal.RequireFromString("50")})
	s.Require().NoError(err)
	s.True(created.Active)

	_, err = s.catalog.CreateBoxType(s.ctx(), s.admin, models.CreateBoxTypeRequest{Name: "Premium", Size: "large", BaseCost: decimal.RequireFromString("40")})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	boxTypes, err := s.catalog.ListActiveBoxTypes(context.Background())
	s.Require().NoError(err)
	s.Len(boxTypes, 1)
}

func (s *CatalogSuite) TestCorrectBoxTypePrice() {
	box := s.seedBoxType("Basic", "10.00", true)

	updated, err := s.catalog.CorrectBoxTypePrice(s.ctx(), s.admin, box.ID, decimal.RequireFromString("12.50"))
	s.Require().NoError(err)
	s.Equal("12.50", updated.BaseCost.StringFixed(2))
	s.Equal([]id.BoxTypeID{box.ID}, s.cache.boxTypes)

	_, err = s.catalog.CorrectBoxTypePrice(s.ctx(), s.admin, box.ID, decimal.RequireFromString("-1"))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.catalog.CorrectBoxTypePrice(s.ctx(), s.admin, box.ID, decimal.RequireFromString("15.999"))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	stored, err := s.store.FindBoxType(context.Background(), box.ID)
	s.Require().NoError(err)
	s.Equal("12.50", stored.BaseCost.StringFixed(2))

	_, err = s.catalog.CorrectBoxTypePrice(s.ctx(), s.user, box.ID, decimal.RequireFromString("1"))
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	page, err := s.auditStore.ListAdminActions(context.Background(), audit.AdminLogFilter{Action: audit.ActionUpdateBoxTypePrice})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 1)
	s.JSONEq(`{"base_cost":"10.00"}`, string(page.Items[0].Before))
	s.JSONEq(`{"base_cost":"12.50"}`, string(page.Items[0].After))
}

func (s *CatalogSuite) TestMultiplierHistoryRequiresAdmin() {
	country := s.seedCountry("Norway", "NO", "1.3", true)
	_, err := s.catalog.MultiplierHistory(context.Background(), s.user, country.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.catalog.MultiplierHistory(context.Background(), s.admin, id.NewCountryID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CatalogSuite) TestUpdateCountry() {
	box := s.seedBoxType("Basic", "10.00", true)
	country := s.seedCountry("Norway", "NO", "1.3", true)
	off := false

	updated, err := s.catalog.UpdateCountry(s.ctx(), s.admin, country.ID, models.UpdateCountryRequest{Active: &off})
	s.Require().NoError(err)
	s.False(updated.Active)
	s.Equal("Norway", updated.Name)

	_, err = s.calculator.Calculate(context.Background(), box.ID, country.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidReference))
	s.Equal("is not active", dErrors.ViolationsOf(err)[0].Message)

	active, err := s.catalog.ListActiveCountries(context.Background())
	s.Require().NoError(err)
	s.Empty(active)

	on := true
	name := "  Kingdom of Norway "
	updated, err = s.catalog.UpdateCountry(s.ctx(), s.admin, country.ID, models.UpdateCountryRequest{Active: &on, Name: &name})
	s.Require().NoError(err)
	s.True(updated.Active)
	s.Equal("Kingdom of Norway", updated.Name)
	_, err = s.calculator.Calculate(context.Background(), box.ID, country.ID)
	s.NoError(err)

	page, err := s.auditStore.ListAdminActions(context.Background(), audit.AdminLogFilter{Action: audit.ActionUpdateCountry})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 2)
	s.JSONEq(`{"name":"Norway","is_source":false,"active":true}`, string(page.Items[1].Before))
	s.JSONEq(`{"name":"Norway","is_source":false,"active":false}`, string(page.Items[1].After))
	s.JSONEq(`{"name":"Kingdom of Norway","is_source":false,"active":true}`, string(page.Items[0].After))
	s.Equal([]id.CountryID{country.ID, country.ID}, s.cache.countries)
}

func (s *CatalogSuite) TestUpdateCountryRejections() {
	country := s.seedCountry("Norway", "NO", "1.3", true)
	on := true

	s.Run("non admin forbidden", func() {
		_, err := s.catalog.UpdateCountry(s.ctx(), s.user, country.ID, models.UpdateCountryRequest{Active: &on})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("empty body", func() {
		_, err := s.catalog.UpdateCountry(s.ctx(), s.admin, country.ID, models.UpdateCountryRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("blank name", func() {
		blank := "   "
		_, err := s.catalog.UpdateCountry(s.ctx(), s.admin, country.ID, models.UpdateCountryRequest{Name: &blank})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("name", dErrors.ViolationsOf(err)[0].Field)
	})

	s.Run("unchanged", func() {
		_, err := s.catalog.UpdateCountry(s.ctx(), s.admin, country.ID, models.UpdateCountryRequest{Active: &on})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown country", func() {
		_, err := s.catalog.UpdateCountry(s.ctx(), s.admin, id.NewCountryID(), models.UpdateCountryRequest{Active: &on})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("audit failure rolls back the update", func() {
		off := false
		s.auditStore.FailNext("admin_action", errors.New("connection reset"))
		_, err := s.catalog.UpdateCountry(s.ctx(), s.admin, country.ID, models.UpdateCountryRequest{Active: &off})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		stored, err := s.store.FindCountry(context.Background(), country.ID)
		s.Require().NoError(err)
		s.True(stored.Active)
	})

	s.Run("store failure", func() {
		off := false
		s.store.FailNext("update_country", errors.New("deadlock"))
		_, err := s.catalog.UpdateCountry(s.ctx(), s.admin, country.ID, models.UpdateCountryRequest{Active: &off})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	page, err := s.auditStore.ListAdminActions(context.Background(), audit.AdminLogFilter{})
	s.Require().NoError(err)
	s.Zero(page.Total)
	s.Empty(s.cache.countries)
}

func (s *CatalogSuite) TestSetBoxTypeActive() {
	box := s.seedBoxType("Basic", "10.00", true)
	country := s.seedCountry("Norway", "NO", "1.3", true)

	updated, err := s.catalog.SetBoxTypeActive(s.ctx(), s.admin, box.ID, false)
	s.Require().NoError(err)
	s.False(updated.Active)

	_, err = s.calculator.Calculate(context.Background(), box.ID, country.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidReference))
	s.Equal("box_type_id", dErrors.ViolationsOf(err)[0].Field)

	_, err = s.catalog.SetBoxTypeActive(s.ctx(), s.admin, box.ID, false)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal("active", dErrors.ViolationsOf(err)[0].Field)

	_, err = s.catalog.SetBoxTypeActive(s.ctx(), s.user, box.ID, true)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.catalog.SetBoxTypeActive(s.ctx(), s.admin, id.NewBoxTypeID(), true)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.store.FailNext("update_box_type_active", errors.New("deadlock"))
	_, err = s.catalog.SetBoxTypeActive(s.ctx(), s.admin, box.ID, true)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = s.catalog.SetBoxTypeActive(s.ctx(), s.admin, box.ID, true)
	s.Require().NoError(err)
	_, err = s.calculator.Calculate(context.Background(), box.ID, country.ID)
	s.NoError(err)

	page, err := s.auditStore.ListAdminActions(context.Background(), audit.AdminLogFilter{Action: audit.ActionUpdateBoxTypeStatus})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 2)
	s.JSONEq(`{"active":true}`, string(page.Items[1].Before))
	s.JSONEq(`{"active":false}`, string(page.Items[1].After))
	s.JSONEq(`{"active":true}`, string(page.Items[0].After))
	s.Equal([]id.BoxTypeID{box.ID, box.ID}, s.cache.boxTypes)
}
