// Package api provides the HTTP API for Routecast.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/routecast/routecast/internal/api/handler"
	"github.com/routecast/routecast/internal/api/middleware"
	"github.com/routecast/routecast/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version         string
	BuildTime       string
	Logger          zerolog.Logger
	ServiceName     string
	Metrics         *middleware.Metrics
	RequireTLS      bool
	TokenValidator  middleware.TokenValidator
	Predictions     handler.PredictionService
	Registry        *resilience.Registry
	ReadinessChecks map[string]handler.ReadinessCheck
	Caches          []handler.CacheReport
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "routecast-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Checks:    cfg.ReadinessChecks,
		Caches:    cfg.Caches,
		Logger:    cfg.Logger,
	})
	predictionHandler := handler.NewPredictionHandler(cfg.Predictions, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.TokenValidator)
	optionalAuth := middleware.OptionalAuth(cfg.TokenValidator)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Predictions fan out to the routing and weather providers, so
		// anonymous callers are limited per IP and users per account.
		r.Route("/predictions", func(r chi.Router) {
			r.With(
				optionalAuth,
				middleware.RequireJSON,
				middleware.RateLimitByUser(middleware.PredictionRateLimit),
			).Post("/", predictionHandler.CreatePrediction)

			r.Route("/{predictionId}", func(r chi.Router) {
				r.Use(authMiddleware)
				r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))
				r.Get("/", predictionHandler.GetPrediction)
				r.Delete("/", predictionHandler.DeletePrediction)
			})
		})

		// Me endpoints (authenticated) - user-based rate limiting
		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))
			r.Get("/predictions", predictionHandler.ListPredictions)
		})
	})

	return r
}
