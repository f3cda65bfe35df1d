package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"boxinator/internal/pricing/metrics"
	"boxinator/internal/pricing/models"
	id "boxinator/pkg/domain"
)

const (
	keyBoxType         = "catalog:box_type:"
	keyCountry         = "catalog:country:"
	keyActiveBoxTypes  = "catalog:box_types:active"
	keyActiveCountries = "catalog:countries:active"

	defaultRedeleteAfter = 500 * time.Millisecond
	redeleteTimeout      = 2 * time.Second
)

type backend interface {
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

// RedisCache is a read-through cache in front of the catalog store. Reads by
// id and the active lists are cached; locking reads and writes pass through.
// Callers invalidate after their transaction commits. Redis failures degrade
// to the backing store.
//
// A reader that loaded before the commit can still write its stale value
// after the invalidation. Each invalidation therefore deletes its keys a
// second time after redeleteAfter.
type RedisCache struct {
	backend
	client        *redis.Client
	ttl           time.Duration
	redeleteAfter time.Duration
	group         singleflight.Group
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

type CacheOption func(*RedisCache)

// WithRedeleteAfter sets the delay of the second delete. Zero disables it.
func WithRedeleteAfter(d time.Duration) CacheOption {
	return func(c *RedisCache) {
		if d >= 0 {
			c.redeleteAfter = d
		}
	}
}

func NewRedisCache(inner backend, client *redis.Client, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger, opts ...CacheOption) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &RedisCache{
		backend:       inner,
		client:        client,
		ttl:           ttl,
		redeleteAfter: defaultRedeleteAfter,
		metrics:       m,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) FindBoxType(ctx context.Context, boxTypeID id.BoxTypeID) (*models.BoxType, error) {
	return readThrough(ctx, c, "box_type", keyBoxType+boxTypeID.String(), func() (*models.BoxType, error) {
		return c.backend.FindBoxType(ctx, boxTypeID)
	})
}

func (c *RedisCache) FindCountry(ctx context.Context, countryID id.CountryID) (*models.Country, error) {
	return readThrough(ctx, c, "country", keyCountry+countryID.String(), func() (*models.Country, error) {
		return c.backend.FindCountry(ctx, countryID)
	})
}

func (c *RedisCache) ListActiveBoxTypes(ctx context.Context) ([]*models.BoxType, error) {
	return readThrough(ctx, c, "box_types", keyActiveBoxTypes, func() ([]*models.BoxType, error) {
		return c.backend.ListActiveBoxTypes(ctx)
	})
}

func (c *RedisCache) ListActiveCountries(ctx context.Context) ([]*models.Country, error) {
	return readThrough(ctx, c, "countries", keyActiveCountries, func() ([]*models.Country, error) {
		return c.backend.ListActiveCountries(ctx)
	})
}

// InvalidateCountry drops a country and the active country list.
func (c *RedisCache) InvalidateCountry(ctx context.Context, countryID id.CountryID) {
	c.invalidate(ctx, keyCountry+countryID.String(), keyActiveCountries)
}

// InvalidateBoxType drops a box type and the active box type list.
func (c *RedisCache) InvalidateBoxType(ctx context.Context, boxTypeID id.BoxTypeID) {
	c.invalidate(ctx, keyBoxType+boxTypeID.String(), keyActiveBoxTypes)
}

func (c *RedisCache) invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		c.group.Forget(key)
	}
	c.del(ctx, keys...)
	if c.redeleteAfter == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	time.AfterFunc(c.redeleteAfter, func() {
		ctx, cancel := context.WithTimeout(detached, redeleteTimeout)
		defer cancel()
		c.del(ctx, keys...)
	})
}

func (c *RedisCache) del(ctx context.Context, keys ...string) {
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "catalog cache invalidation failed", "keys", keys, "error", err)
	}
}

// readThrough serves key from Redis or loads it once per key across
// concurrent callers and stores the result. Only successful loads are cached.
func readThrough[T any](ctx context.Context, c *RedisCache, kind, key string, load func() (T, error)) (T, error) {
	var zero T
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil {
			c.metrics.RecordCacheHit(kind)
			return v, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable catalog cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "catalog cache read failed", "key", key, "error", err)
	}
	c.metrics.RecordCacheMiss(kind)

	v, err, _ := c.group.Do(key, func() (any, error) {
		loaded, err := load()
		if err != nil {
			return nil, err
		}
		if b, mErr := json.Marshal(loaded); mErr == nil {
			if setErr := c.client.Set(ctx, key, b, c.ttl).Err(); setErr != nil {
				c.logger.WarnContext(ctx, "catalog cache write failed", "key", key, "error", setErr)
			}
		}
		return loaded, nil
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("catalog cache: unexpected type for %s", key)
	}
	return typed, nil
}
