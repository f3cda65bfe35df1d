//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"boxinator/internal/platform/logger"
	"boxinator/internal/pricing/metrics"
	"boxinator/internal/pricing/models"
	pricingstore "boxinator/internal/pricing/store"
	id "boxinator/pkg/domain"
	"boxinator/pkg/platform/sentinel"
	"boxinator/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	backend *pricingstore.InMemoryStore
	metrics *metrics.Metrics
	cache   *pricingstore.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.backend = pricingstore.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.cache = pricingstore.NewRedisCache(s.backend, s.redis.Client, time.Minute, s.metrics, logger.Discard(),
		pricingstore.WithRedeleteAfter(50*time.Millisecond))
}

func (s *RedisCacheSuite) seedCountry(multiplier string) *models.Country {
	c := &models.Country{ID: id.NewCountryID(), Name: "Norway", Code: "NO", Multiplier: decimal.RequireFromString(multiplier), Active: true}
	s.Require().NoError(s.backend.CreateCountry(context.Background(), c))
	return c
}

func (s *RedisCacheSuite) TestSecondReadIsAHit() {
	ctx := context.Background()
	country := s.seedCountry("1.5")

	first, err := s.cache.FindCountry(ctx, country.ID)
	s.Require().NoError(err)
	second, err := s.cache.FindCountry(ctx, country.ID)
	s.Require().NoError(err)

	s.True(first.Multiplier.Equal(second.Multiplier))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CacheMisses.WithLabelValues("country")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CacheHits.WithLabelValues("country")))
}

func (s *RedisCacheSuite) TestInvalidateServesFreshValue() {
	ctx := context.Background()
	country := s.seedCountry("1.5")

	_, err := s.cache.FindCountry(ctx, country.ID)
	s.Require().NoError(err)
	_, err = s.cache.ListActiveCountries(ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.backend.UpdateCountryMultiplier(ctx, country.ID, decimal.RequireFromString("2.25"), time.Now()))

	stale, err := s.cache.FindCountry(ctx, country.ID)
	s.Require().NoError(err)
	s.Equal("1.5", stale.Multiplier.String(), "entry is served from cache until invalidated")

	s.cache.InvalidateCountry(ctx, country.ID)

	fresh, err := s.cache.FindCountry(ctx, country.ID)
	s.Require().NoError(err)
	s.Equal("2.25", fresh.Multiplier.String())
	list, err := s.cache.ListActiveCountries(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("2.25", list[0].Multiplier.String())
}

func (s *RedisCacheSuite) TestLateStaleWriteIsDeletedAgain() {
	ctx := context.Background()
	country := s.seedCountry("1.5")
	key := "catalog:country:" + country.ID.String()

	_, err := s.cache.FindCountry(ctx, country.ID)
	s.Require().NoError(err)
	staleEntry, err := s.redis.Client.Get(ctx, key).Bytes()
	s.Require().NoError(err)

	s.Require().NoError(s.backend.UpdateCountryMultiplier(ctx, country.ID, decimal.RequireFromString("2.25"), time.Now()))
	s.cache.InvalidateCountry(ctx, country.ID)

	// a reader that loaded before the commit finishes its write now
	s.Require().NoError(s.redis.Client.Set(ctx, key, staleEntry, time.Minute).Err())

	s.Eventually(func() bool {
		got, err := s.cache.FindCountry(ctx, country.ID)
		return err == nil && got.Multiplier.String() == "2.25"
	}, 2*time.Second, 20*time.Millisecond)
}

func (s *RedisCacheSuite) TestNotFoundIsNotCached() {
	ctx := context.Background()
	missing := id.NewCountryID()

	_, err := s.cache.FindCountry(ctx, missing)
	s.ErrorIs(err, sentinel.ErrNotFound)

	c := &models.Country{ID: missing, Name: "Late", Code: "LT", Multiplier: decimal.NewFromInt(1), Active: true}
	s.Require().NoError(s.backend.CreateCountry(ctx, c))

	found, err := s.cache.FindCountry(ctx, missing)
	s.Require().NoError(err)
	s.Equal("LT", found.Code)
}

func (s *RedisCacheSuite) TestConcurrentMissesShareOneLoad() {
	ctx := context.Background()
	box := &models.BoxType{ID: id.NewBoxTypeID(), Name: "Basic", Size: "small", BaseCost: decimal.RequireFromString("25"), Active: true}
	s.Require().NoError(s.backend.CreateBoxType(ctx, box))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.cache.FindBoxType(ctx, box.ID)
			s.NoError(err)
			s.Equal("25.00", got.BaseCost.StringFixed(2))
		}()
	}
	wg.Wait()
}
