package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"github.com/ridedeck/ridedeck/internal/api/models"
	"github.com/ridedeck/ridedeck/internal/telemetry"
)

// Recovery returns a middleware that recovers from panics, reports them to
// Sentry and returns a 500 problem.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hub := sentry.CurrentHub().Clone()
			hub.Scope().SetRequest(r)
			r = r.WithContext(sentry.SetHubOnContext(r.Context(), hub))

			defer func() {
				if err := recover(); err != nil {
					requestID := GetRequestID(r.Context())

					log.Error().
						Str("request_id", requestID).
						Interface("error", err).
						Str("stack", string(debug.Stack())).
						Msg("panic recovered")

					telemetry.CapturePanic(r.Context(), err, map[string]string{
						"request_id": requestID,
						"method":     r.Method,
						"path":       r.URL.Path,
					})

					problem := models.NewInternalError(requestID, "an unexpected error occurred")
					problem.Instance = r.URL.Path
					problem.Write(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
