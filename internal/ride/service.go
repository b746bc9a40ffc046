package ride

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ridedeck/ridedeck/internal/normalize"
)

// ProfileFetcher fetches the raw rider profile.
type ProfileFetcher interface {
	GetProfile(ctx context.Context) (normalize.Record, error)
}

// ActivityFetcher fetches the raw activity history.
type ActivityFetcher interface {
	GetActivities(ctx context.Context) ([]normalize.Record, error)
}

// RouteFetcher fetches the raw route list.
type RouteFetcher interface {
	GetRoutes(ctx context.Context) ([]normalize.Record, error)
}

// Session is an authenticated connection to a cycling platform.
type Session interface {
	ProfileFetcher
	ActivityFetcher
	RouteFetcher
}

// Provider opens sessions against one cycling platform.
type Provider interface {
	// Connect authenticates with the given credentials.
	Connect(ctx context.Context, creds Credentials) (Session, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the ride service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger
}

// Service syncs rider data from a cycling platform.
type Service struct {
	provider Provider
	logger   zerolog.Logger
}

// NewService creates a new ride service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// Sync pulls the profile, activity history and route list concurrently and
// derives the catalog and badges from them.
func (s *Service) Sync(ctx context.Context, creds Credentials) (*SyncResult, error) {
	session, err := s.connect(ctx, creds)
	if err != nil {
		return nil, err
	}

	var (
		profileRaw    normalize.Record
		activitiesRaw []normalize.Record
		routesRaw     []normalize.Record
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, err := session.GetProfile(gctx)
		if err != nil {
			return fmt.Errorf("fetching profile: %w", err)
		}
		profileRaw = rec
		return nil
	})
	g.Go(func() error {
		recs, err := session.GetActivities(gctx)
		if err != nil {
			return fmt.Errorf("fetching activities: %w", err)
		}
		activitiesRaw = recs
		return nil
	})
	g.Go(func() error {
		recs, err := session.GetRoutes(gctx)
		if err != nil {
			return fmt.Errorf("fetching routes: %w", err)
		}
		routesRaw = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Str("provider", s.provider.Name()).Msg("ride sync failed")
		return nil, err
	}

	profile := NormalizeProfile(normalize.AsRecord(profileRaw))
	activities := NormalizeActivities(activitiesRaw)
	routes := BuildCatalog(routesRaw, &profile)
	badges := MapActivitiesToBadges(activities, routes)

	s.logger.Debug().
		Str("provider", s.provider.Name()).
		Int("activities", len(activities)).
		Int("routes", len(routes)).
		Int("badges", len(badges.Badges)).
		Int("missing_routes", len(badges.MissingRoutes)).
		Msg("ride sync complete")

	return &SyncResult{
		Profile:       profile,
		Activities:    activities,
		Routes:        routes,
		Badges:        badges.Badges,
		MissingRoutes: badges.MissingRoutes,
	}, nil
}

// Routes returns the route catalog with default speed estimates.
func (s *Service) Routes(ctx context.Context, creds Credentials) ([]Route, error) {
	session, err := s.connect(ctx, creds)
	if err != nil {
		return nil, err
	}

	raw, err := session.GetRoutes(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("provider", s.provider.Name()).Msg("route fetch failed")
		return nil, fmt.Errorf("fetching routes: %w", err)
	}

	return BuildCatalog(raw, nil), nil
}

func (s *Service) connect(ctx context.Context, creds Credentials) (Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, ErrProviderUnavailable
	}

	session, err := s.provider.Connect(ctx, creds)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", s.provider.Name()).Msg("ride provider login failed")
		return nil, fmt.Errorf("connecting to %s: %w", s.provider.Name(), err)
	}
	return session, nil
}
