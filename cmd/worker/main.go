// Package main provides the entrypoint for the Routecast forecast prewarm worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/api/handler"
	"github.com/routecast/routecast/internal/config"
	"github.com/routecast/routecast/internal/database"
	"github.com/routecast/routecast/internal/provider/resilience"
	"github.com/routecast/routecast/internal/telemetry"
	"github.com/routecast/routecast/internal/weather"
	"github.com/routecast/routecast/internal/weather/providers"
	"github.com/routecast/routecast/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// cacheRetention bounds how long shared weather entries are kept. It exceeds
// every TTL and the stale-if-error window.
const cacheRetention = 24 * time.Hour

func main() {
	const serviceName = "routecast-worker"

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := cfg.NewLogger(serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Routecast worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Server.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics") //nolint:gocritic // telemetry cleanup is best-effort
	}

	// The worker fills the Postgres weather cache that API instances read,
	// so it has nothing to do without a database.
	if !cfg.Database.Enabled {
		log.Fatal().Msg("DB_ENABLED must be set - the worker prewarms the shared weather cache")
	}
	pool, err := database.Connect(ctx, cfg.DatabaseConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	sharedCache := weather.NewPostgresCache(pool)
	if err := sharedCache.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure weather cache schema")
	}

	registry := resilience.NewRegistry()
	weatherProvider, err := providers.New(cfg.Weather, registry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create weather provider")
	}
	weatherService := weather.NewService(weather.ServiceConfig{
		Provider:      weatherProvider,
		Logger:        log,
		Metrics:       providerMetrics,
		CurrentTTL:    cfg.Weather.CurrentTTL,
		HourlyTTL:     cfg.Weather.HourlyTTL,
		DailyTTL:      cfg.Weather.DailyTTL,
		CacheGridSize: cfg.Weather.CacheGridSize,
		Shared:        sharedCache,
	})

	targets, err := cfg.Worker.PrewarmTargets()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid prewarm targets")
	}
	prewarmCfg := worker.DefaultPrewarmConfig()
	if len(targets) > 0 {
		prewarmCfg.Points = targets
	}
	prewarmCfg.Concurrency = cfg.Worker.Concurrency
	prewarmCfg.HourlyHours = cfg.Corridor.HourlyHours
	prewarmCfg.DailyDays = cfg.Corridor.DailyDays

	job := worker.NewPrewarmJob(worker.PrewarmJobConfig{
		Config:   prewarmCfg,
		Provider: weatherService,
		Logger:   log,
	})

	scheduler := worker.NewScheduler(job, cfg.Worker.PrewarmInterval, log)
	scheduler.AddTask("weather cache prune", time.Hour, func(ctx context.Context) {
		n, pruneErr := sharedCache.Prune(ctx, time.Now().Add(-cacheRetention))
		if pruneErr != nil {
			log.Warn().Err(pruneErr).Msg("failed to prune weather cache")
			return
		}
		log.Debug().Int64("deleted", n).Msg("pruned weather cache")
	})
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start prewarm scheduler")
	}
	defer scheduler.Stop()

	if cfg.Worker.ProjectID != "" && cfg.Worker.SubscriptionID != "" {
		pubsubHandler, psErr := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.ProjectID,
			SubscriptionName: cfg.Worker.SubscriptionID,
			Job:              job,
			Logger:           log,
		})
		if psErr != nil {
			log.Fatal().Err(psErr).Msg("failed to create pubsub handler")
		}
		defer func() {
			if closeErr := pubsubHandler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := pubsubHandler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().Msg("pubsub not configured - running scheduled prewarm only")
	}

	// Cloud Run expects the worker to answer health checks.
	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Registry:  registry,
		Checks:    map[string]handler.ReadinessCheck{"database": pool.Ping},
		Logger:    log,
	})
	r := chi.NewRouter()
	r.Get("/health", ops.HealthCheck)
	r.Get("/ready", ops.ReadinessCheck)
	r.Get("/status", ops.SystemStatus)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	m := job.GetMetrics()
	log.Info().
		Int64("runs", m.Runs).
		Int64("successful_points", m.SuccessfulPoints).
		Int64("failed_points", m.FailedPoints).
		Msg("worker stopped")
}
