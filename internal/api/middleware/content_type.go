package middleware

import (
	"mime"
	"net/http"
	"slices"
	"strings"

	"github.com/ridedeck/ridedeck/internal/api/models"
)

// ContentTypeJSON defaults the response Content-Type to application/json.
// Handlers that write something else set their own header first.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// AllowContentTypes rejects request bodies whose declared media type is not
// one of types with 415. Requests without a body or without a Content-Type
// header pass through; the handler's decoder reports those.
func AllowContentTypes(types ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Content-Type")
			if r.ContentLength == 0 || header == "" {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(header)
			if err != nil || !slices.Contains(types, mediaType) {
				problem := models.NewUnsupportedMediaType(GetRequestID(r.Context()),
					"Content-Type must be one of: "+strings.Join(types, ", "))
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
