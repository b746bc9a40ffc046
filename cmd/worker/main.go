// Package main provides the entrypoint for the RideDeck background worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridedeck/ridedeck/internal/availability"
	"github.com/ridedeck/ridedeck/internal/availability/zwiftinsider"
	"github.com/ridedeck/ridedeck/internal/config"
	"github.com/ridedeck/ridedeck/internal/metrics"
	"github.com/ridedeck/ridedeck/internal/provider/resilience"
	"github.com/ridedeck/ridedeck/internal/telemetry"
	"github.com/ridedeck/ridedeck/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "ridedeck-worker"

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

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Server.Environment).
		Msg("starting RideDeck worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
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

	recorder := metrics.NewRecorder()
	providers := resilience.NewRegistry()

	scheduleCfg := resilience.DefaultClientConfig(zwiftinsider.ProviderName)
	scheduleCfg.Registry = providers

	resolver := availability.NewResolver(availability.ResolverConfig{
		Source: zwiftinsider.NewClient(zwiftinsider.ClientConfig{
			BaseURL:    cfg.Schedule.BaseURL,
			HTTPClient: resilience.NewClient(scheduleCfg),
			Logger:     log,
		}),
		Logger:   log,
		TTL:      cfg.Schedule.TTL,
		Observer: recorder,
	})

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Timezones:   cfg.Schedule.Timezones,
			Concurrency: cfg.Schedule.Concurrency,
		},
		Logger:    log,
		Refresher: resolver,
	})
	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		RefreshJob: refreshJob,
		Providers:  providers,
		Observer:   recorder,
		Logger:     log,
	})

	// Cloud Run needs a listening port even for the worker.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "healthy",
			"version": Version,
			"refresh": refreshJob.MetricsSnapshot(),
			"cache":   resolver.CacheStats(),
		})
	})
	mux.Handle("/metrics", recorder.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.PubSub.ProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Dispatcher:       dispatcher,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub receive stopped")
				cancel()
			}
		}()
	} else {
		log.Warn().Msg("pubsub project not configured, refreshing schedule on a timer")
		go runLocal(ctx, dispatcher, cfg.Schedule.TTL/2, log)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// runLocal publishes jobs to the dispatcher directly, for environments
// without a subscription.
func runLocal(ctx context.Context, d *worker.Dispatcher, interval time.Duration, log zerolog.Logger) {
	refresh := []byte(`{"job_type":"` + worker.JobScheduleRefresh + `"}`)
	health := []byte(`{"job_type":"` + worker.JobHealthCheck + `"}`)

	worker.Process(ctx, d, log, refresh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			worker.Process(ctx, d, log, refresh)
			worker.Process(ctx, d, log, health)
		}
	}
}
