package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"boxinator/internal/audit"
	auditstore "boxinator/internal/audit/store"
	httpapi "boxinator/internal/http"
	"boxinator/internal/notification"
	"boxinator/internal/platform/config"
	"boxinator/internal/platform/redis"
	pricingmetrics "boxinator/internal/pricing/metrics"
	pricingservice "boxinator/internal/pricing/service"
	pricingstore "boxinator/internal/pricing/store"
	profilehandler "boxinator/internal/profile/handler"
	profilestore "boxinator/internal/profile/store"
	shipmentservice "boxinator/internal/shipment/service"
	shipmentstore "boxinator/internal/shipment/store"
	"boxinator/internal/storage"
	"boxinator/pkg/platform/tx"
)

type profileStore interface {
	shipmentservice.ProfileProvider
	profilehandler.Store
}

type stores struct {
	shipments shipmentservice.Store
	audit     audit.Store
	pricing   pricingservice.Store
	profiles  profileStore
	cache     *pricingstore.RedisCache
	runner    tx.Runner
	health    map[string]httpapi.HealthCheck
	closers   []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildStores selects Postgres when a database URL is configured and the
// in-memory stores otherwise. Redis, when configured, fronts the catalog.
func buildStores(ctx context.Context, cfg config.Server, pm *pricingmetrics.Metrics, log *slog.Logger) (*stores, error) {
	s := &stores{health: map[string]httpapi.HealthCheck{}}

	var catalog pricingservice.Store
	if cfg.UsesPostgres() {
		db, err := storage.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		if cfg.Database.AutoMigrate {
			if err := storage.Migrate(ctx, db); err != nil {
				s.close()
				return nil, err
			}
		}
		s.shipments = shipmentstore.NewPostgres(db)
		s.audit = auditstore.NewPostgres(db)
		s.profiles = profilestore.NewPostgres(db)
		s.runner = tx.NewSQLRunner(db)
		s.health["database"] = pingDB(db)
		catalog = pricingstore.NewPostgres(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		s.shipments = shipmentstore.NewInMemoryStore()
		s.audit = auditstore.NewInMemoryStore()
		s.profiles = profilestore.NewInMemoryStore()
		s.runner = tx.NewMemoryRunner()
		catalog = pricingstore.NewInMemoryStore()
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if client != nil {
		s.closers = append(s.closers, func() { _ = client.Close() })
		s.cache = pricingstore.NewRedisCache(catalog, client.Client, cfg.Redis.CatalogTTL, pm, log)
		s.pricing = s.cache
		s.health["redis"] = client.Health
	} else {
		s.pricing = catalog
	}
	return s, nil
}

func pingDB(db *sql.DB) httpapi.HealthCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

// buildSender returns the Kafka sender when brokers are configured and the
// log sender otherwise.
func buildSender(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (notification.Sender, func(), error) {
	if len(cfg.Brokers) == 0 {
		log.Warn("KAFKA_BROKERS not set, notifications are logged only")
		return notification.NewLogSender(log), func() {}, nil
	}
	sender, err := notification.NewKafkaSender(notification.KafkaConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		ClientID: cfg.ClientID,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := sender.EnsureTopic(ctx, 3, 1); err != nil {
		// The broker may not allow topic creation; delivery falls back to the
		// log sender until it becomes reachable.
		log.Warn("could not ensure notification topic", "topic", cfg.Topic, "error", err)
	}
	return sender, sender.Close, nil
}
