package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridedeck/ridedeck/internal/api/middleware"
	"github.com/ridedeck/ridedeck/internal/api/models"
)

func TestContentTypeJSON(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"default", func(w http.ResponseWriter, _ *http.Request) {}, "application/json"},
		{"handler override", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
		}, "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := middleware.ContentTypeJSON(tt.handler)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ops/health", nil))

			assert.Equal(t, tt.want, w.Header().Get("Content-Type"))
		})
	}
}

func TestAllowContentTypes(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := middleware.AllowContentTypes("application/octet-stream", "multipart/form-data")(ok)

	tests := []struct {
		name        string
		body        string
		contentType string
		want        int
	}{
		{"allowed", "FIT", "application/octet-stream", http.StatusOK},
		{"allowed with params", "--b--", "multipart/form-data; boundary=b", http.StatusOK},
		{"no header", "FIT", "", http.StatusOK},
		{"no body", "", "text/plain", http.StatusOK},
		{"wrong type", `{"a":1}`, "application/json", http.StatusUnsupportedMediaType},
		{"unparsable", "FIT", "application/;;", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/activities/fit", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAllowContentTypes_Problem(t *testing.T) {
	h := middleware.AllowContentTypes("application/json")(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/zwift/sync", strings.NewReader("username=kai"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&problem))
	assert.Equal(t, models.ProblemTypeMediaType, problem.Type)
	assert.Equal(t, "/v1/zwift/sync", problem.Instance)
	assert.Contains(t, problem.Detail, "application/json")
}
