package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridedeck/ridedeck/internal/api"
	"github.com/ridedeck/ridedeck/internal/api/models"
	"github.com/ridedeck/ridedeck/internal/auth"
	"github.com/ridedeck/ridedeck/internal/availability"
	"github.com/ridedeck/ridedeck/internal/dashboard"
	"github.com/ridedeck/ridedeck/internal/featureflags"
	"github.com/ridedeck/ridedeck/internal/metrics"
	"github.com/ridedeck/ridedeck/internal/normalize"
	"github.com/ridedeck/ridedeck/internal/provider/resilience"
	"github.com/ridedeck/ridedeck/internal/readiness"
	"github.com/ridedeck/ridedeck/internal/readiness/garmin"
	"github.com/ridedeck/ridedeck/internal/ride"
)

// rideProvider serves a fixed rider history.
type rideProvider struct {
	connectErr error
}

func (p *rideProvider) Name() string { return "zwift" }

func (p *rideProvider) Connect(context.Context, ride.Credentials) (ride.Session, error) {
	if p.connectErr != nil {
		return nil, p.connectErr
	}
	return rideSession{}, nil
}

type rideSession struct{}

func (rideSession) GetProfile(context.Context) (normalize.Record, error) {
	return normalize.Record{"id": 7, "firstName": "Kai", "ftp": 250}, nil
}

func (rideSession) GetActivities(context.Context) ([]normalize.Record, error) {
	return []normalize.Record{
		{"id": "act-1", "routeId": 1, "startTime": "2024-07-01T06:00:00Z"},
	}, nil
}

func (rideSession) GetRoutes(context.Context) ([]normalize.Record, error) {
	return []normalize.Record{
		{"id": 1, "name": "Volcano Circuit", "distanceKm": 4.1, "worldId": 1},
		{"id": 2, "name": "Tempus Fugit", "distanceKm": 17.3, "worldId": 1},
		{"id": 3, "name": "Greater London Loop", "distanceKm": 25, "worldId": 3},
	}, nil
}

// scheduleSource serves July 2024.
type scheduleSource struct{}

func (scheduleSource) Name() string { return "test" }

func (scheduleSource) FetchSchedule(_ context.Context, year int, month time.Month) (availability.Schedule, error) {
	if year != 2024 || month != time.July {
		return availability.Schedule{}, nil
	}
	return availability.Schedule{
		"2024-07-01": {"London", "Yorkshire"},
		"2024-07-02": {"Innsbruck"},
	}, nil
}

// metricsProvider returns a good day of wearable data.
type metricsProvider struct{}

func (metricsProvider) Name() string { return "garmin" }

func (metricsProvider) FetchMetrics(context.Context, string, string) (*readiness.Metrics, error) {
	battery := 90.0
	return &readiness.Metrics{
		CapturedAt:  time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC),
		BodyBattery: &battery,
		HRVStatus:   readiness.HRVHigh,
	}, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testEnv struct {
	cfg     api.RouterConfig
	jwt     *auth.JWTService
	metrics *metrics.Recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zerolog.New(io.Discard)
	recorder := metrics.NewRecorder()
	registry := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: "zwift", Registry: registry})

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "ridedeck",
		Audience:   "ridedeck-app",
	})

	resolver := availability.NewResolver(availability.ResolverConfig{
		Source:   scheduleSource{},
		Logger:   logger,
		Observer: recorder,
		Now:      func() time.Time { return time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC) },
	})
	rides := ride.NewService(ride.ServiceConfig{Provider: &rideProvider{}, Logger: logger})
	readinessSvc := readiness.NewService(readiness.ServiceConfig{
		Provider:   metricsProvider{},
		Repository: readiness.NewInMemoryRepository(),
		Observer:   recorder,
		Logger:     logger,
	})

	return &testEnv{
		jwt:     jwtService,
		metrics: recorder,
		cfg: api.RouterConfig{
			Version:        "test",
			BuildTime:      "2024-01-01T00:00:00Z",
			Logger:         logger,
			MetricsHandler: recorder.Handler(),
			Authenticator:  jwtService,
			Rides:          rides,
			Worlds:         resolver,
			ScheduleCache:  resolver,
			Dashboard: dashboard.NewService(dashboard.ServiceConfig{
				Availability: resolver,
				Rides:        rides,
				Observer:     recorder,
				Logger:       logger,
			}),
			WearableAuth: garmin.NewAuthenticator(garmin.AuthConfig{}, nil),
			Readiness:    readinessSvc,
			Providers:    registry,
			Flags: featureflags.NewService(featureflags.ServiceConfig{
				Repository: featureflags.NewInMemoryRepository(),
				Logger:     logger,
			}),
		},
	}
}

func (e *testEnv) router() http.Handler {
	return api.NewRouter(e.cfg)
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := e.jwt.GenerateAccessToken(userID)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var p models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

const creds = `"username":"rider@example.com","password":"secret"`

func TestRouter_HealthCheck(t *testing.T) {
	w := do(t, newTestEnv(t).router(), http.MethodGet, "/v1/ops/health", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	env := newTestEnv(t)

	w := do(t, env.router(), http.MethodGet, "/v1/ops/ready", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	env.cfg.Database = failingPinger{}
	w = do(t, env.router(), http.MethodGet, "/v1/ops/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusFail, health.Status)
}

func TestRouter_SystemStatus(t *testing.T) {
	env := newTestEnv(t)
	router := env.router()

	w := do(t, router, http.MethodGet, "/v1/ops/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/v1/ops/status", "", env.token(t, "ops"))
	require.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, "zwift", status.Providers[0].Provider)
	assert.Equal(t, "closed", status.Providers[0].CircuitState)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "schedule-cache", status.Subsystems[0].Name)
}

func TestRouter_ZwiftSync(t *testing.T) {
	w := do(t, newTestEnv(t).router(), http.MethodPost, "/v1/zwift/sync", "{"+creds+"}", "")
	require.Equal(t, http.StatusOK, w.Code)

	var result ride.SyncResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "Kai", result.Profile.DisplayName)
	assert.Len(t, result.Routes, 3)
	require.Len(t, result.Badges, 1)
	assert.Equal(t, 1, result.Badges[0].RouteID)
}

func TestRouter_RejectsUnsupportedMediaType(t *testing.T) {
	router := newTestEnv(t).router()

	tests := []struct {
		name        string
		path        string
		contentType string
	}{
		{"form body on sync", "/v1/zwift/sync", "application/x-www-form-urlencoded"},
		{"text body on readiness score", "/v1/readiness/score", "text/plain"},
		{"json body on fit import", "/v1/activities/fit", "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader("{"+creds+"}"))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
			assert.Equal(t, models.ProblemTypeMediaType, decodeProblem(t, w).Type)
		})
	}
}

func TestRouter_ZwiftValidation(t *testing.T) {
	router := newTestEnv(t).router()

	tests := []struct {
		name  string
		path  string
		body  string
		field string
	}{
		{"sync without password", "/v1/zwift/sync", `{"username":"rider@example.com"}`, "username"},
		{"routes without body", "/v1/zwift/routes", "", "body"},
		{"worlds bad date", "/v1/zwift/worlds", `{"date":"2024-13-01"}`, "date"},
		{"recommendations without score", "/v1/zwift/recommendations", "{" + creds + "}", "readinessScore"},
		{"recommendations non-numeric score", "/v1/zwift/recommendations", `{` + creds + `,"readinessScore":"tired"}`, "readinessScore"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, tt.path, tt.body, "")
			require.Equal(t, http.StatusBadRequest, w.Code)

			p := decodeProblem(t, w)
			assert.Equal(t, models.ProblemTypeValidation, p.Type)
			assert.Equal(t, tt.path, p.Instance)
			require.Len(t, p.Errors, 1)
			assert.Equal(t, tt.field, p.Errors[0].Field)
		})
	}
}

func TestRouter_ZwiftUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Rides = ride.NewService(ride.ServiceConfig{
		Provider: &rideProvider{connectErr: &resilience.StatusError{Provider: "zwift", StatusCode: http.StatusUnauthorized, Body: "bad credentials"}},
		Logger:   zerolog.Nop(),
	})

	w := do(t, env.router(), http.MethodPost, "/v1/zwift/routes", "{"+creds+"}", "")
	require.Equal(t, http.StatusBadGateway, w.Code)

	p := decodeProblem(t, w)
	assert.Equal(t, "zwift", p.Provider)
	assert.Equal(t, http.StatusUnauthorized, p.UpstreamStatus)
	assert.Contains(t, p.Detail, "bad credentials")
}

func TestRouter_ZwiftRoutes(t *testing.T) {
	w := do(t, newTestEnv(t).router(), http.MethodPost, "/v1/zwift/routes", "{"+creds+"}", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Routes []ride.Route `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Routes, 3)
}

func TestRouter_ZwiftWorlds(t *testing.T) {
	router := newTestEnv(t).router()

	w := do(t, router, http.MethodPost, "/v1/zwift/worlds", `{"date":"2024-07-01","timezone":"Europe/London"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var result availability.WorldAvailability
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "2024-07-01", result.Date)
	assert.Equal(t, "Europe/London", result.Timezone)
	assert.Equal(t, []string{"London", "Yorkshire"}, result.GuestWorlds)
	assert.Equal(t, []string{"Watopia", "London", "Yorkshire"}, result.AvailableWorlds)

	w = do(t, router, http.MethodPost, "/v1/zwift/worlds", `{}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "UTC", result.Timezone)
	assert.Equal(t, "2024-07-01", result.Date)
}

func TestRouter_ZwiftSchedule(t *testing.T) {
	router := newTestEnv(t).router()

	w := do(t, router, http.MethodGet, "/v1/zwift/schedule?year=2024&month=7", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Year     int                   `json:"year"`
		Month    int                   `json:"month"`
		Schedule availability.Schedule `json:"schedule"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 7, body.Month)
	assert.Equal(t, []string{"Innsbruck"}, body.Schedule["2024-07-02"])

	w = do(t, router, http.MethodGet, "/v1/zwift/schedule?year=2024&month=13", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ZwiftRecommendations(t *testing.T) {
	env := newTestEnv(t)

	body := `{` + creds + `,"readinessScore":"58","date":"2024-07-01"}`
	w := do(t, env.router(), http.MethodPost, "/v1/zwift/recommendations", body, "")
	require.Equal(t, http.StatusOK, w.Code)

	var result dashboard.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "2024-07-01", result.Date)
	assert.InDelta(t, 58, result.ReadinessScore, 1e-9)
	assert.Equal(t, []string{"Watopia", "London", "Yorkshire"}, result.AvailableWorlds)
	require.NotEmpty(t, result.Recommendations)
	for _, rec := range result.Recommendations {
		assert.NotEqual(t, 1, rec.Route.ID, "completed route recommended")
	}

	scrape := do(t, env.router(), http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, scrape.Code)
	assert.Contains(t, scrape.Body.String(), "ridedeck_recommend_recommendations_total")
	assert.Contains(t, scrape.Body.String(), `ridedeck_schedule_cache_lookups_total{result="miss"}`)
}

func TestRouter_GarminAuthNotConfigured(t *testing.T) {
	w := do(t, newTestEnv(t).router(), http.MethodPost, "/v1/garmin/auth/start", `{"redirectUri":"ridedeck://garmin"}`, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	decodeProblem(t, w)
}

func TestRouter_GarminAuthStart(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.WearableAuth = garmin.NewAuthenticator(garmin.AuthConfig{
		AuthorizeURL: "https://connect.example.com/oauth/authorize",
		TokenURL:     "https://connect.example.com/oauth/token",
		ClientID:     "ridedeck",
		ClientSecret: "s3cret",
	}, nil)
	router := env.router()

	w := do(t, router, http.MethodPost, "/v1/garmin/auth/start", `{"redirectUri":"ridedeck://garmin","state":"abc"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var start garmin.AuthStart
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &start))
	assert.Equal(t, "abc", start.State)
	assert.True(t, strings.HasPrefix(start.URL, "https://connect.example.com/oauth/authorize?"))

	w = do(t, router, http.MethodPost, "/v1/garmin/auth/exchange", `{"redirectUri":"ridedeck://garmin"}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "code", decodeProblem(t, w).Errors[0].Field)

	w = do(t, router, http.MethodPost, "/v1/garmin/auth/refresh", `{}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "refreshToken", decodeProblem(t, w).Errors[0].Field)
}

func TestRouter_ReadinessFlow(t *testing.T) {
	env := newTestEnv(t)
	router := env.router()
	token := env.token(t, "rider-42")

	w := do(t, router, http.MethodGet, "/v1/me/readiness", "", token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/v1/garmin/readiness", `{"accessToken":"garmin-token"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/v1/garmin/readiness", `{"accessToken":"garmin-token"}`, token)
	require.Equal(t, http.StatusOK, w.Code)

	var snapshot readiness.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Equal(t, "rider-42", snapshot.UserID)
	assert.Equal(t, 66, snapshot.ReadinessScore)
	assert.Equal(t, readiness.SourceGarmin, snapshot.Source)

	w = do(t, router, http.MethodGet, "/v1/me/readiness", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	var latest readiness.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &latest))
	assert.Equal(t, snapshot.ID, latest.ID)

	w = do(t, router, http.MethodGet, "/v1/me/readiness/history?limit=5", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Items []readiness.Snapshot `json:"items"`
		Limit int                  `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Equal(t, 5, history.Limit)
	assert.Len(t, history.Items, 1)

	w = do(t, router, http.MethodGet, "/v1/me/readiness/history?limit=0", "", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/v1/garmin/readiness", `{}`, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "accessToken", decodeProblem(t, w).Errors[0].Field)
}

func TestRouter_ReadinessScore(t *testing.T) {
	w := do(t, newTestEnv(t).router(), http.MethodPost, "/v1/readiness/score", `{"bodyBattery":"90","hrvStatus":"HIGH"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ReadinessScore int               `json:"readinessScore"`
		Metrics        readiness.Metrics `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 66, body.ReadinessScore)
	assert.Equal(t, readiness.HRVHigh, body.Metrics.HRVStatus)
}

func TestRouter_ImportFITRejectsGarbage(t *testing.T) {
	router := newTestEnv(t).router()

	req := httptest.NewRequest(http.MethodPost, "/v1/activities/fit", bytes.NewReader([]byte("not a fit file")))
	req.Header.Set("Content-Type", "application/octet-stream")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "file", decodeProblem(t, w).Errors[0].Field)
}

func TestRouter_InvalidateSchedule(t *testing.T) {
	env := newTestEnv(t)
	router := env.router()

	w := do(t, router, http.MethodPost, "/v1/ops/schedule/invalidate", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/v1/ops/schedule/invalidate", "", env.token(t, "ops"))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	w := do(t, newTestEnv(t).router(), http.MethodGet, "/v1/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_SecurityHeaders(t *testing.T) {
	w := do(t, newTestEnv(t).router(), http.MethodGet, "/v1/ops/health", "", "")

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestRouter_FeatureFlags(t *testing.T) {
	env := newTestEnv(t)
	router := env.router()
	token := env.token(t, "ops")

	w := do(t, router, http.MethodGet, "/v1/ops/flags", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/v1/ops/flags", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	var list featureflags.FlagList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Items, 3)

	w = do(t, router, http.MethodPatch, "/v1/ops/flags", `{"updates":[{"key":"disable_everything","value":true}]}`, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "updates", decodeProblem(t, w).Errors[0].Field)

	w = do(t, router, http.MethodPatch, "/v1/ops/flags",
		`{"updates":[{"key":"disable_recommendations","value":true}],"reason":"upstream incident"}`, token)
	require.Equal(t, http.StatusOK, w.Code)

	body := `{` + creds + `,"readinessScore":50}`
	w = do(t, router, http.MethodPost, "/v1/zwift/recommendations", body, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	decodeProblem(t, w)

	// Other features stay on.
	w = do(t, router, http.MethodPost, "/v1/zwift/routes", "{"+creds+"}", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
