// Package main provides the entrypoint for the RideDeck API server.
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

	"github.com/ridedeck/ridedeck/internal/api"
	"github.com/ridedeck/ridedeck/internal/api/handler"
	"github.com/ridedeck/ridedeck/internal/api/middleware"
	"github.com/ridedeck/ridedeck/internal/auth"
	"github.com/ridedeck/ridedeck/internal/availability"
	"github.com/ridedeck/ridedeck/internal/availability/zwiftinsider"
	"github.com/ridedeck/ridedeck/internal/config"
	"github.com/ridedeck/ridedeck/internal/dashboard"
	"github.com/ridedeck/ridedeck/internal/database"
	"github.com/ridedeck/ridedeck/internal/featureflags"
	"github.com/ridedeck/ridedeck/internal/metrics"
	"github.com/ridedeck/ridedeck/internal/provider/resilience"
	"github.com/ridedeck/ridedeck/internal/readiness"
	"github.com/ridedeck/ridedeck/internal/readiness/garmin"
	"github.com/ridedeck/ridedeck/internal/ride"
	"github.com/ridedeck/ridedeck/internal/ride/zwift"
	"github.com/ridedeck/ridedeck/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "ridedeck-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.IsDevelopment() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Server.Environment).
		Msg("starting RideDeck API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Server.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Insecure:       cfg.Telemetry.Insecure,
		ExportInterval: cfg.Telemetry.ExportInterval,
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

	if err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Environment:      cfg.Server.Environment,
		Release:          serviceName + "@" + Version,
		ServerName:       serviceName,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
	}, log); err != nil {
		log.Error().Err(err).Msg("failed to initialize sentry")
	}
	defer telemetry.FlushSentry(2 * time.Second)

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	recorder := metrics.NewRecorder()
	providers := resilience.NewRegistry()

	zwiftHTTP := newProviderClient(zwift.ProviderName, providers)
	garminHTTP := newProviderClient(garmin.ProviderName, providers)
	scheduleHTTP := newProviderClient(zwiftinsider.ProviderName, providers)

	rides := ride.NewService(ride.ServiceConfig{
		Provider: zwift.NewClient(zwift.ClientConfig{
			BaseURL:       cfg.Zwift.BaseURL,
			TokenURL:      cfg.Zwift.TokenURL,
			ClientID:      cfg.Zwift.ClientID,
			ActivityLimit: cfg.Zwift.ActivityLimit,
			HTTPClient:    zwiftHTTP,
			Logger:        log,
		}),
		Logger: log,
	})

	resolver := availability.NewResolver(availability.ResolverConfig{
		Source: zwiftinsider.NewClient(zwiftinsider.ClientConfig{
			BaseURL:    cfg.Schedule.BaseURL,
			HTTPClient: scheduleHTTP,
			Logger:     log,
		}),
		Logger:   log,
		TTL:      cfg.Schedule.TTL,
		Observer: recorder,
	})

	var (
		repo      readiness.Repository    = readiness.NewInMemoryRepository()
		flagsRepo featureflags.Repository = featureflags.NewInMemoryRepository()
		dbPinger  handler.Pinger
	)
	if cfg.Database.Enabled {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		pgRepo := readiness.NewPostgresRepository(pool)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare readiness schema")
		}
		pgFlags := featureflags.NewPostgresRepository(pool)
		if err := pgFlags.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare feature flag schema")
		}
		repo = pgRepo
		flagsRepo = pgFlags
		dbPinger = pool
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
	} else {
		log.Warn().Msg("database disabled, readiness snapshots and flags kept in memory")
	}

	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: flagsRepo,
		Logger:     log,
		CacheTTL:   time.Minute,
	})

	readinessService := readiness.NewService(readiness.ServiceConfig{
		Provider: garmin.NewClient(garmin.ClientConfig{
			BaseURL:    cfg.Garmin.BaseURL,
			Paths:      cfg.Garmin.Paths,
			Fields:     cfg.Garmin.Fields,
			HTTPClient: garminHTTP,
			Logger:     log,
		}),
		Repository: repo,
		Observer:   recorder,
		Logger:     log,
	})

	if cfg.Auth.JWTSigningKey == "" {
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.SigningKey(),
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		RequireTLS:     !cfg.IsDevelopment(),
		Metrics:        httpMetrics,
		MetricsHandler: recorder.Handler(),
		Authenticator:  jwtService,
		Rides:          rides,
		Worlds:         resolver,
		ScheduleCache:  resolver,
		Dashboard: dashboard.NewService(dashboard.ServiceConfig{
			Availability: resolver,
			Rides:        rides,
			Observer:     recorder,
			Logger:       log,
		}),
		WearableAuth: garmin.NewAuthenticator(cfg.Garmin.OAuth, garminHTTP),
		Readiness:    readinessService,
		Providers:    providers,
		Database:     dbPinger,
		Flags:        flags,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

func newProviderClient(name string, registry *resilience.Registry) *resilience.Client {
	clientCfg := resilience.DefaultClientConfig(name)
	clientCfg.Registry = registry
	return resilience.NewClient(clientCfg)
}
