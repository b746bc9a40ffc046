package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

// SentryConfig holds error reporting settings.
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	ServerName       string
	TracesSampleRate float64
}

// InitSentry configures the global Sentry hub. An empty DSN leaves error
// reporting disabled and is not an error.
func InitSentry(cfg SentryConfig, log zerolog.Logger) error {
	if cfg.DSN == "" {
		log.Warn().Msg("sentry DSN not configured, error reporting disabled")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		TracesSampleRate: cfg.TracesSampleRate,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("release", cfg.Release).
		Msg("sentry initialized")
	return nil
}

// scrubEvent strips credentials before an event leaves the process.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request == nil {
		return event
	}
	for _, h := range []string{"Authorization", "Cookie", "X-Api-Key"} {
		delete(event.Request.Headers, h)
	}
	event.Request.Data = ""
	return event
}

// CaptureError reports err with optional tags on a hub bound to ctx when one
// exists, else on the current hub.
func CaptureError(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic value.
func CapturePanic(ctx context.Context, recovered any, tags map[string]string) {
	err, ok := recovered.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", recovered)
	}
	CaptureError(ctx, err, tags)
}

// FlushSentry waits for buffered events to be sent.
func FlushSentry(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
