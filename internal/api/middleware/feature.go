package middleware

import (
	"context"
	"net/http"

	"github.com/ridedeck/ridedeck/internal/api/models"
)

// FlagChecker reports whether a boolean feature flag is on.
type FlagChecker interface {
	IsEnabled(ctx context.Context, key string) bool
}

// FeatureGate answers 503 while the kill-switch flag named by key is on. A nil
// checker lets every request through.
func FeatureGate(flags FlagChecker, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if flags == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if flags.IsEnabled(r.Context(), key) {
				problem := models.NewServiceUnavailable(GetRequestID(r.Context()), "this feature is temporarily disabled")
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
