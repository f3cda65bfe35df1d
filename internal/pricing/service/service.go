package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"boxinator/internal/audit"
	"boxinator/internal/pricing/metrics"
	"boxinator/internal/pricing/models"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/sentinel"
	"boxinator/pkg/platform/tx"
)

// Store is the catalog persistence port.
type Store interface {
	FindBoxType(ctx context.Context, boxTypeID id.BoxTypeID) (*models.BoxType, error)
	FindBoxTypeForUpdate(ctx context.Context, boxTypeID id.BoxTypeID) (*models.BoxType, error)
	FindCountry(ctx context.Context, countryID id.CountryID) (*models.Country, error)
	FindCountryForUpdate(ctx context.Context, countryID id.CountryID) (*models.Country, error)
	ListActiveBoxTypes(ctx context.Context) ([]*models.BoxType, error)
	ListActiveCountries(ctx context.Context) ([]*models.Country, error)
	CreateBoxType(ctx context.Context, b *models.BoxType) error
	CreateCountry(ctx context.Context, c *models.Country) error
	UpdateCountryMultiplier(ctx context.Context, countryID id.CountryID, multiplier decimal.Decimal, at time.Time) error
	UpdateBoxTypeBaseCost(ctx context.Context, boxTypeID id.BoxTypeID, baseCost decimal.Decimal, at time.Time) error
	UpdateCountryDetails(ctx context.Context, c *models.Country) error
	UpdateBoxTypeActive(ctx context.Context, boxTypeID id.BoxTypeID, active bool, at time.Time) error
	AppendMultiplierChange(ctx context.Context, change models.MultiplierChange) error
	ListMultiplierChanges(ctx context.Context, countryID id.CountryID) ([]models.MultiplierChange, error)
}

// AdminRecorder writes admin action rows inside the caller's transaction.
type AdminRecorder interface {
	AppendAdminAction(ctx context.Context, entry audit.AdminAction) error
}

// CacheInvalidator drops cached catalog entries after a committed write.
type CacheInvalidator interface {
	InvalidateCountry(ctx context.Context, countryID id.CountryID)
	InvalidateBoxType(ctx context.Context, boxTypeID id.BoxTypeID)
}

// Catalog serves reference pricing data and administrative price changes.
type Catalog struct {
	store    Store
	tx       tx.Runner
	recorder AdminRecorder
	cache    CacheInvalidator
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Catalog)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Catalog) {
		c.metrics = m
	}
}

func WithCacheInvalidator(inv CacheInvalidator) Option {
	return func(c *Catalog) {
		c.cache = inv
	}
}

// NewCatalog constructs a Catalog.
func NewCatalog(store Store, runner tx.Runner, recorder AdminRecorder, opts ...Option) *Catalog {
	c := &Catalog{store: store, tx: runner, recorder: recorder, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Catalog) GetBoxType(ctx context.Context, boxTypeID id.BoxTypeID) (*models.BoxType, error) {
	b, err := c.store.FindBoxType(ctx, boxTypeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "box type not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load box type")
	}
	return b, nil
}

func (c *Catalog) GetCountry(ctx context.Context, countryID id.CountryID) (*models.Country, error) {
	country, err := c.store.FindCountry(ctx, countryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "country not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load country")
	}
	return country, nil
}

// ListActiveCountries returns active destinations sorted by name.
func (c *Catalog) ListActiveCountries(ctx context.Context) ([]*models.Country, error) {
	countries, err := c.store.ListActiveCountries(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list countries")
	}
	return countries, nil
}

// ListActiveBoxTypes returns active box types sorted by name.
func (c *Catalog) ListActiveBoxTypes(ctx context.Context) ([]*models.BoxType, error) {
	boxTypes, err := c.store.ListActiveBoxTypes(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list box types")
	}
	return boxTypes, nil
}

func requireAdmin(actor id.Actor) error {
	if !actor.IsAdmin() {
		return dErrors.New(dErrors.CodeForbidden, "administrator role required")
	}
	return nil
}

func (c *Catalog) recordPricingChange(action audit.Action) {
	c.metrics.IncrementPricingChange(string(action))
}
