package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"boxinator/internal/audit"
	audithandler "boxinator/internal/audit/handler"
	httpapi "boxinator/internal/http"
	"boxinator/internal/identity"
	"boxinator/internal/notification"
	"boxinator/internal/platform/config"
	"boxinator/internal/platform/httpserver"
	"boxinator/internal/platform/logger"
	"boxinator/internal/platform/metrics"
	pricinghandler "boxinator/internal/pricing/handler"
	pricingmetrics "boxinator/internal/pricing/metrics"
	pricingservice "boxinator/internal/pricing/service"
	profilehandler "boxinator/internal/profile/handler"
	shipmenthandler "boxinator/internal/shipment/handler"
	shipmentmetrics "boxinator/internal/shipment/metrics"
	shipmentservice "boxinator/internal/shipment/service"
	"boxinator/internal/shipment/tracking"
)

// main wires stores, services and handlers, then runs the HTTP server and the
// notification dispatcher until a termination signal arrives.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.ServiceName, cfg.Environment)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pm := pricingmetrics.New(reg)
	deps, err := buildStores(ctx, cfg, pm, log)
	if err != nil {
		return err
	}
	defer deps.close()

	sender, closeSender, err := buildSender(ctx, cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer closeSender()
	dispatcher := notification.NewDispatcher(sender,
		notification.WithBufferSize(cfg.Notification.BufferSize),
		notification.WithBatchSize(cfg.Notification.BatchSize),
		notification.WithFlushInterval(cfg.Notification.FlushInterval),
		notification.WithLogger(log),
		notification.WithMetrics(notification.NewMetrics(reg)),
	)

	recorder := audit.NewRecorder(deps.audit, audit.WithLogger(log))
	catalogOpts := []pricingservice.Option{
		pricingservice.WithLogger(log),
		pricingservice.WithMetrics(pm),
	}
	if deps.cache != nil {
		catalogOpts = append(catalogOpts, pricingservice.WithCacheInvalidator(deps.cache))
	}
	catalog := pricingservice.NewCatalog(deps.pricing, deps.runner, recorder, catalogOpts...)
	calculator := pricingservice.NewCalculator(deps.pricing, pm)

	shipments := shipmentservice.New(
		deps.shipments,
		recorder,
		calculator,
		tracking.NewGenerator(),
		deps.profiles,
		deps.runner,
		shipmentservice.WithLogger(log),
		shipmentservice.WithMetrics(shipmentmetrics.New(reg)),
		shipmentservice.WithNotifier(dispatcher),
		shipmentservice.WithCountryLookup(catalog),
	)

	pricingHTTP := pricinghandler.New(catalog, calculator, log)
	shipmentHTTP := shipmenthandler.New(shipments, log)
	router := httpapi.NewRouter(httpapi.Deps{
		Logger:         log,
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		Tokens:         identity.NewTokenService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience),
		RequestTimeout: cfg.RequestTimeout,
		Health:         deps.health,
		Modules: []httpapi.Module{
			pricingHTTP,
			shipmentHTTP,
			profilehandler.New(deps.profiles, log),
		},
		AdminModules: []httpapi.AdminModule{
			pricingHTTP,
			shipmentHTTP,
			audithandler.New(recorder, log),
		},
	})
	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting boxinator", "addr", cfg.Addr, "postgres", cfg.UsesPostgres(), "kafka", len(cfg.Kafka.Brokers) > 0)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
