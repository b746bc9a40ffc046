package dashboard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridedeck/ridedeck/internal/availability"
	"github.com/ridedeck/ridedeck/internal/dashboard"
	"github.com/ridedeck/ridedeck/internal/recommend"
	"github.com/ridedeck/ridedeck/internal/ride"
)

type stubResolver struct {
	got  availability.Request
	resp *availability.WorldAvailability
	err  error
}

func (s *stubResolver) Resolve(_ context.Context, req availability.Request) (*availability.WorldAvailability, error) {
	s.got = req
	return s.resp, s.err
}

type stubRides struct {
	result *ride.SyncResult
	err    error
}

func (s *stubRides) Sync(_ context.Context, _ ride.Credentials) (*ride.SyncResult, error) {
	return s.result, s.err
}

type captureObserver struct {
	recs []recommend.Recommendation
}

func (o *captureObserver) ObserveRecommendations(recs []recommend.Recommendation) {
	o.recs = recs
}

func score(v float64) *float64 {
	return &v
}

var creds = ride.Credentials{Username: "rider@example.com", Password: "pw"}

func TestService_Recommendations(t *testing.T) {
	resolver := &stubResolver{resp: &availability.WorldAvailability{
		Date:            "2024-03-10",
		Timezone:        "Europe/London",
		GuestWorlds:     []string{"London"},
		AvailableWorlds: []string{"Watopia", "London"},
	}}
	rides := &stubRides{result: &ride.SyncResult{
		Routes: []ride.Route{
			{ID: 1, WorldID: 1, Name: "Volcano Flat", EstimatedTimeMinutes: 30},
			{ID: 2, WorldID: 3, Name: "London Loop", EstimatedTimeMinutes: 60},
			{ID: 3, WorldID: 7, Name: "Yorkshire UCI", EstimatedTimeMinutes: 90},
			{ID: 4, WorldID: 1, Name: "Tempus Fugit", EstimatedTimeMinutes: 95},
		},
		Badges: []ride.Badge{{RouteID: 4, ActivityID: "a1"}},
	}}
	obs := &captureObserver{}

	svc := dashboard.NewService(dashboard.ServiceConfig{
		Availability: resolver,
		Rides:        rides,
		Observer:     obs,
		Logger:       zerolog.Nop(),
	})

	resp, err := svc.Recommendations(context.Background(), dashboard.Request{
		Credentials:    creds,
		ReadinessScore: score(50),
		Date:           "2024-03-10",
		Timezone:       "Europe/London",
	})
	require.NoError(t, err)

	assert.Equal(t, availability.Request{Date: "2024-03-10", Timezone: "Europe/London"}, resolver.got)
	assert.Equal(t, "2024-03-10", resp.Date)
	assert.Equal(t, "Europe/London", resp.Timezone)
	assert.Equal(t, []string{"London"}, resp.GuestWorlds)
	assert.Equal(t, 50.0, resp.ReadinessScore)

	// Yorkshire is closed and Tempus Fugit is already done
	require.Len(t, resp.Recommendations, 2)
	assert.Equal(t, 1, resp.Recommendations[0].Route.ID)
	assert.Equal(t, 2, resp.Recommendations[1].Route.ID)
	assert.Equal(t, resp.Recommendations, obs.recs)
}

func TestService_RecommendationsValidation(t *testing.T) {
	svc := dashboard.NewService(dashboard.ServiceConfig{Logger: zerolog.Nop()})

	_, err := svc.Recommendations(context.Background(), dashboard.Request{Credentials: creds})
	assert.ErrorIs(t, err, dashboard.ErrMissingReadinessScore)

	_, err = svc.Recommendations(context.Background(), dashboard.Request{ReadinessScore: score(60)})
	assert.ErrorIs(t, err, ride.ErrMissingCredentials)
}

func TestService_RecommendationsUpstreamFailure(t *testing.T) {
	scheduleErr := errors.New("schedule down")
	svc := dashboard.NewService(dashboard.ServiceConfig{
		Availability: &stubResolver{err: scheduleErr},
		Rides:        &stubRides{result: &ride.SyncResult{}},
		Logger:       zerolog.Nop(),
	})

	_, err := svc.Recommendations(context.Background(), dashboard.Request{Credentials: creds, ReadinessScore: score(50)})
	assert.ErrorIs(t, err, scheduleErr)

	syncErr := errors.New("login rejected")
	svc = dashboard.NewService(dashboard.ServiceConfig{
		Availability: &stubResolver{resp: &availability.WorldAvailability{AvailableWorlds: []string{"Watopia"}}},
		Rides:        &stubRides{err: syncErr},
		Logger:       zerolog.Nop(),
	})

	_, err = svc.Recommendations(context.Background(), dashboard.Request{Credentials: creds, ReadinessScore: score(50)})
	assert.ErrorIs(t, err, syncErr)
}

func TestService_RecommendationsEmptyCatalog(t *testing.T) {
	svc := dashboard.NewService(dashboard.ServiceConfig{
		Availability: &stubResolver{resp: &availability.WorldAvailability{AvailableWorlds: []string{"Watopia"}}},
		Rides:        &stubRides{result: &ride.SyncResult{}},
		Logger:       zerolog.Nop(),
	})

	resp, err := svc.Recommendations(context.Background(), dashboard.Request{Credentials: creds, ReadinessScore: score(50)})
	require.NoError(t, err)
	assert.NotNil(t, resp.Recommendations)
	assert.Empty(t, resp.Recommendations)
}
