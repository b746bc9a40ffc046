package readiness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MetricsProvider fetches a day of wearable metrics for an access token.
type MetricsProvider interface {
	// FetchMetrics returns the metrics for date (YYYY-MM-DD), or today when empty.
	FetchMetrics(ctx context.Context, accessToken, date string) (*Metrics, error)

	// Name returns the provider name for logging.
	Name() string
}

// ScoreObserver is notified of every computed score.
type ScoreObserver interface {
	ObserveReadiness(source string, score int)
}

// ServiceConfig holds configuration for the readiness service.
type ServiceConfig struct {
	Provider   MetricsProvider
	Repository Repository
	Observer   ScoreObserver
	Logger     zerolog.Logger

	// Now overrides the clock. Used by tests.
	Now func() time.Time
}

// Service computes and stores readiness snapshots.
type Service struct {
	provider MetricsProvider
	repo     Repository
	observer ScoreObserver
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a new readiness service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		provider: cfg.Provider,
		repo:     cfg.Repository,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		now:      now,
	}
}

// Sync fetches the user's metrics, scores them and stores the snapshot.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (*Snapshot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, ErrNotConfigured
	}

	s.logger.Debug().
		Str("user_id", req.UserID).
		Str("date", req.Date).
		Str("provider", s.provider.Name()).
		Msg("fetching readiness metrics")

	metrics, err := s.provider.FetchMetrics(ctx, req.AccessToken, req.Date)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("failed to fetch readiness metrics")
		return nil, fmt.Errorf("fetching metrics: %w", err)
	}

	score := s.Score(SourceGarmin, *metrics)
	snapshot := &Snapshot{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		CapturedAt:     metrics.CapturedAt,
		Metrics:        *metrics,
		ReadinessScore: score,
		CreatedAt:      s.now().UTC(),
		Source:         SourceGarmin,
	}
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = snapshot.CreatedAt
	}

	if s.repo != nil {
		if err := s.repo.Save(ctx, snapshot); err != nil {
			s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("failed to store readiness snapshot")
			return nil, fmt.Errorf("saving snapshot: %w", err)
		}
	}

	return snapshot, nil
}

// Score computes a readiness score and reports it to the observer.
func (s *Service) Score(source string, m Metrics) int {
	score := ComputeReadiness(m)
	if s.observer != nil {
		s.observer.ObserveReadiness(source, score)
	}
	return score
}

// Latest returns the newest stored snapshot for a user.
func (s *Service) Latest(ctx context.Context, userID string) (*Snapshot, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if s.repo == nil {
		return nil, ErrSnapshotNotFound
	}
	return s.repo.Latest(ctx, userID)
}

// History returns up to limit stored snapshots for a user, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*Snapshot, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if s.repo == nil {
		return []*Snapshot{}, nil
	}
	return s.repo.List(ctx, userID, limit)
}
