// Package dashboard combines world availability, ride history and readiness
// into ride recommendations.
package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/ridedeck/ridedeck/internal/availability"
	"github.com/ridedeck/ridedeck/internal/recommend"
	"github.com/ridedeck/ridedeck/internal/ride"
)

const tracerName = "github.com/ridedeck/ridedeck/internal/dashboard"

// ErrMissingReadinessScore is returned when a request carries no usable score.
var ErrMissingReadinessScore = errors.New("readinessScore is required")

// AvailabilityResolver resolves the worlds open on a day.
type AvailabilityResolver interface {
	Resolve(ctx context.Context, req availability.Request) (*availability.WorldAvailability, error)
}

// RideSyncer pulls a rider's catalog and completions.
type RideSyncer interface {
	Sync(ctx context.Context, creds ride.Credentials) (*ride.SyncResult, error)
}

// RecommendationObserver is told about every produced recommendation set.
type RecommendationObserver interface {
	ObserveRecommendations(recs []recommend.Recommendation)
}

// Request asks for recommendations for one rider and day.
type Request struct {
	Credentials    ride.Credentials
	ReadinessScore *float64
	Date           string
	Timezone       string
}

// Response is the recommendation dashboard for one day.
type Response struct {
	Date            string                     `json:"date"`
	Timezone        string                     `json:"timezone"`
	GuestWorlds     []string                   `json:"guestWorlds"`
	AvailableWorlds []string                   `json:"availableWorlds"`
	ReadinessScore  float64                    `json:"readinessScore"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
}

// ServiceConfig holds configuration for the dashboard service.
type ServiceConfig struct {
	Availability AvailabilityResolver
	Rides        RideSyncer
	Observer     RecommendationObserver
	Logger       zerolog.Logger
}

// Service builds recommendation dashboards.
type Service struct {
	availability AvailabilityResolver
	rides        RideSyncer
	observer     RecommendationObserver
	logger       zerolog.Logger
}

// NewService creates a new dashboard service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		availability: cfg.Availability,
		rides:        cfg.Rides,
		observer:     cfg.Observer,
		logger:       cfg.Logger,
	}
}

// Recommendations resolves today's worlds and the rider's history concurrently,
// then runs the recommendation engine over them.
func (s *Service) Recommendations(ctx context.Context, req Request) (*Response, error) {
	if req.ReadinessScore == nil {
		return nil, ErrMissingReadinessScore
	}
	if err := req.Credentials.Validate(); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "dashboard.Recommendations")
	defer span.End()

	var (
		worlds *availability.WorldAvailability
		synced *ride.SyncResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		worlds, err = s.availability.Resolve(gctx, availability.Request{Date: req.Date, Timezone: req.Timezone})
		if err != nil {
			return fmt.Errorf("resolving availability: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		synced, err = s.rides.Sync(gctx, req.Credentials)
		if err != nil {
			return fmt.Errorf("syncing rides: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error().Err(err).Msg("failed to build recommendations")
		return nil, err
	}

	worldIDs := availability.ResolveWorldIDs(worlds.AvailableWorlds)
	recs := recommend.Recommend(recommend.Input{
		ReadinessScore:    *req.ReadinessScore,
		Routes:            synced.Routes,
		Badges:            synced.Badges,
		AvailableWorldIDs: worldIDs,
	})

	span.SetAttributes(
		attribute.String("ridedeck.date", worlds.Date),
		attribute.Int("ridedeck.routes", len(synced.Routes)),
		attribute.Int("ridedeck.badges", len(synced.Badges)),
		attribute.Int("ridedeck.recommendations", len(recs)),
	)
	if s.observer != nil {
		s.observer.ObserveRecommendations(recs)
	}

	s.logger.Debug().
		Str("date", worlds.Date).
		Ints("world_ids", worldIDs).
		Int("recommendations", len(recs)).
		Msg("built recommendations")

	return &Response{
		Date:            worlds.Date,
		Timezone:        worlds.Timezone,
		GuestWorlds:     worlds.GuestWorlds,
		AvailableWorlds: worlds.AvailableWorlds,
		ReadinessScore:  *req.ReadinessScore,
		Recommendations: recs,
	}, nil
}
