// Package main provides the entrypoint for the Routecast API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/api"
	"github.com/routecast/routecast/internal/api/handler"
	"github.com/routecast/routecast/internal/api/middleware"
	"github.com/routecast/routecast/internal/api/models"
	"github.com/routecast/routecast/internal/auth"
	"github.com/routecast/routecast/internal/config"
	"github.com/routecast/routecast/internal/corridor"
	"github.com/routecast/routecast/internal/database"
	"github.com/routecast/routecast/internal/prediction"
	"github.com/routecast/routecast/internal/provider/resilience"
	"github.com/routecast/routecast/internal/routing"
	"github.com/routecast/routecast/internal/routing/openrouteservice"
	"github.com/routecast/routecast/internal/telemetry"
	"github.com/routecast/routecast/internal/timezone"
	"github.com/routecast/routecast/internal/weather"
	"github.com/routecast/routecast/internal/weather/providers"
	"github.com/routecast/routecast/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const devSigningKey = "local-dev-signing-key-change-in-production"

func main() {
	const serviceName = "routecast-api"

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := cfg.NewLogger(serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Server.Env).
		Msg("starting Routecast API")

	ctx := context.Background()

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics") //nolint:gocritic // telemetry cleanup is best-effort
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	registry := resilience.NewRegistry()

	// Routing
	if cfg.Routing.ORSAPIKey == "" {
		log.Warn().Msg("ORS_API_KEY not set - route lookups will be rejected by OpenRouteService")
	}
	routeService := routing.NewService(routing.ServiceConfig{
		Provider: openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:     cfg.Routing.ORSAPIKey,
			BaseURL:    cfg.Routing.ORSBaseURL,
			Registry:   registry,
			SnapRadius: cfg.Routing.SnapRadius,
			Logger:     log,
		}),
		Logger:   log,
		Metrics:  providerMetrics,
		CacheTTL: cfg.Routing.CacheTTL,
	})

	// Storage: saved predictions and the weather cache shared with the worker.
	checks := map[string]handler.ReadinessCheck{}
	var (
		repo        prediction.Repository
		sharedCache weather.SharedCache
	)
	if cfg.Database.Enabled {
		dbConfig := cfg.DatabaseConfig()
		pool, dbErr := database.Connect(ctx, dbConfig)
		if dbErr != nil {
			log.Fatal().Err(dbErr).Msg("failed to connect to database")
		}
		defer pool.Close()
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		pgRepo := prediction.NewPostgresRepository(pool)
		if schemaErr := pgRepo.EnsureSchema(ctx); schemaErr != nil {
			log.Fatal().Err(schemaErr).Msg("failed to ensure prediction schema")
		}
		repo = pgRepo

		pgCache := weather.NewPostgresCache(pool)
		if schemaErr := pgCache.EnsureSchema(ctx); schemaErr != nil {
			log.Fatal().Err(schemaErr).Msg("failed to ensure weather cache schema")
		}
		sharedCache = pgCache
		checks["database"] = pool.Ping
	} else {
		log.Warn().Msg("database disabled - saved predictions and weather cache are process-local")
		repo = prediction.NewInMemoryRepository()
	}

	// Weather
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
	log.Info().
		Str("provider", weatherProvider.Name()).
		Int("registered_providers", registry.ProviderCount()).
		Msg("weather service initialized")

	// Corridor
	var zones timezone.Resolver
	if cfg.Corridor.ResolveZones {
		finder, zoneErr := timezone.Default()
		if zoneErr != nil {
			log.Warn().Err(zoneErr).Msg("time zone finder unavailable - daily forecasts matched in UTC")
		} else {
			zones = finder
		}
	}
	predictor := corridor.NewPredictor(corridor.PredictorConfig{
		Matcher: corridor.NewMatcher(corridor.MatcherConfig{
			Provider:    weatherService,
			Zones:       zones,
			HourlyHours: cfg.Corridor.HourlyHours,
			DailyDays:   cfg.Corridor.DailyDays,
			Logger:      log,
		}),
		Planner:     corridor.Planner{BiasExponent: cfg.Corridor.BiasExponent},
		Concurrency: cfg.Corridor.Concurrency,
		Logger:      log,
	})

	predictionService := prediction.NewService(prediction.ServiceConfig{
		Routes:    routeService,
		Predictor: predictor,
		Repo:      repo,
		Logger:    log,
		Timeout:   cfg.Corridor.PredictTimeout,
	})
	log.Info().Msg("prediction service initialized")

	// Auth
	signingKey := cfg.Auth.JWTSigningKey
	if signingKey == "" {
		if cfg.IsProduction() {
			log.Fatal().Msg("JWT_SIGNING_KEY is required in production")
		}
		signingKey = devSigningKey
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: signingKey,
		Issuer:     cfg.Auth.JWTIssuer,
		Audience:   cfg.Auth.JWTAudience,
	})

	// Optional in-process prewarm for deployments without the worker.
	targets, err := cfg.Worker.PrewarmTargets()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid prewarm targets")
	}
	var scheduler *worker.Scheduler
	if len(targets) > 0 {
		prewarmCfg := worker.DefaultPrewarmConfig()
		prewarmCfg.Points = targets
		prewarmCfg.Concurrency = cfg.Worker.Concurrency
		prewarmCfg.HourlyHours = cfg.Corridor.HourlyHours
		prewarmCfg.DailyDays = cfg.Corridor.DailyDays

		scheduler = worker.NewScheduler(worker.NewPrewarmJob(worker.PrewarmJobConfig{
			Config:   prewarmCfg,
			Provider: weatherService,
			Logger:   log,
		}), cfg.Worker.PrewarmInterval, log)
	}

	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		RequireTLS:      cfg.IsProduction(),
		TokenValidator:  jwtService,
		Predictions:     predictionService,
		Registry:        registry,
		ReadinessChecks: checks,
		Caches: []handler.CacheReport{
			routeCacheReport(routeService),
			weatherCacheReport(weatherService),
		},
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	if scheduler != nil {
		if err := scheduler.Start(runCtx); err != nil {
			log.Fatal().Err(err).Msg("failed to start prewarm scheduler")
		}
		defer scheduler.Stop()
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	stopRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

func routeCacheReport(svc *routing.Service) handler.CacheReport {
	return func() models.CacheStatus {
		st := svc.CacheStats()
		return models.CacheStatus{
			Name:         "routes",
			Provider:     st.Provider,
			Entries:      st.TotalEntries,
			FreshEntries: st.FreshEntries,
		}
	}
}

// weatherCacheReport folds the current, hourly and daily caches into one
// status entry.
func weatherCacheReport(svc *weather.Service) handler.CacheReport {
	return func() models.CacheStatus {
		st := svc.CacheStats()
		return models.CacheStatus{
			Name:         "weather",
			Provider:     st.Provider,
			Entries:      st.CurrentEntries + st.HourlyEntries + st.DailyEntries,
			FreshEntries: st.CurrentFreshEntries + st.HourlyFreshEntries + st.DailyFreshEntries,
		}
	}
}
