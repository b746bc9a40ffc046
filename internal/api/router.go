// Package api provides the HTTP API for RideDeck.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ridedeck/ridedeck/internal/api/handler"
	"github.com/ridedeck/ridedeck/internal/api/middleware"
	"github.com/ridedeck/ridedeck/internal/featureflags"
	"github.com/ridedeck/ridedeck/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	RequireTLS  bool

	// Metrics records OpenTelemetry HTTP metrics when set.
	Metrics *middleware.Metrics

	// MetricsHandler serves the Prometheus scrape endpoint when set.
	MetricsHandler http.Handler

	Authenticator middleware.TokenAuthenticator
	Rides         handler.RideService
	Worlds        handler.WorldResolver
	ScheduleCache handler.ScheduleCache
	Dashboard     handler.DashboardService
	WearableAuth  handler.WearableAuthenticator
	Readiness     ReadinessService
	Providers     *resilience.Registry
	Database      handler.Pinger

	// Flags gates provider-backed features and serves the ops flag
	// endpoints. Nil leaves every feature on.
	Flags FlagService
}

// FlagService is the feature flag surface the router needs.
type FlagService interface {
	handler.FlagService
	middleware.FlagChecker
}

// ReadinessService is the readiness surface the router needs.
type ReadinessService interface {
	handler.ReadinessService
	handler.ReadinessSyncer
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ridedeck-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Providers: cfg.Providers,
		Schedule:  cfg.ScheduleCache,
		Database:  cfg.Database,
		Logger:    cfg.Logger,
	})
	zwiftHandler := handler.NewZwiftHandler(cfg.Rides, cfg.Worlds, cfg.Dashboard, cfg.Logger)
	garminHandler := handler.NewGarminHandler(cfg.WearableAuth, cfg.Readiness, cfg.Logger)
	readinessHandler := handler.NewReadinessHandler(cfg.Readiness, cfg.Logger)
	activityHandler := handler.NewActivityHandler(cfg.Logger)

	authMiddleware := middleware.Auth(cfg.Authenticator)

	var flags middleware.FlagChecker
	if cfg.Flags != nil {
		flags = cfg.Flags
	}
	garminGate := middleware.FeatureGate(flags, featureflags.FlagDisableGarminSync)

	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)
	providerRateLimit := middleware.RateLimitByIP(middleware.ProviderRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	jsonBody := middleware.AllowContentTypes("application/json")
	fitBody := middleware.AllowContentTypes("application/octet-stream", "application/vnd.ant.fit", "multipart/form-data")

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
			r.With(authMiddleware).Post("/schedule/invalidate", opsHandler.InvalidateSchedule)
			if cfg.Flags != nil {
				flagsHandler := handler.NewFlagsHandler(cfg.Flags, cfg.Logger)
				r.With(authMiddleware).Get("/flags", flagsHandler.List)
				r.With(authMiddleware, jsonBody).Patch("/flags", flagsHandler.Update)
			}
		})

		// Cycling platform endpoints carry the rider's credentials in the body.
		r.Route("/zwift", func(r chi.Router) {
			r.Use(providerRateLimit)
			r.Use(jsonBody)
			r.Post("/sync", zwiftHandler.Sync)
			r.Post("/routes", zwiftHandler.Routes)
			r.Post("/worlds", zwiftHandler.Worlds)
			r.Get("/schedule", zwiftHandler.Schedule)
			r.With(middleware.FeatureGate(flags, featureflags.FlagDisableRecommendations)).
				Post("/recommendations", zwiftHandler.Recommendations)
		})

		r.Route("/garmin", func(r chi.Router) {
			r.Use(garminGate)
			r.Use(jsonBody)
			r.Route("/auth", func(r chi.Router) {
				r.Use(authRateLimit)
				r.Post("/start", garminHandler.AuthStart)
				r.Post("/exchange", garminHandler.AuthExchange)
				r.Post("/refresh", garminHandler.AuthRefresh)
			})
			r.With(authMiddleware, middleware.RateLimitByUser(middleware.ProviderRateLimit)).
				Post("/readiness", garminHandler.SyncReadiness)
		})

		r.With(standardRateLimit, jsonBody).Post("/readiness/score", readinessHandler.Score)
		r.With(providerRateLimit, middleware.FeatureGate(flags, featureflags.FlagDisableFITImport), fitBody).
			Post("/activities/fit", activityHandler.ImportFIT)

		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))
			r.Get("/readiness", readinessHandler.Latest)
			r.Get("/readiness/history", readinessHandler.History)
		})
	})

	return r
}
