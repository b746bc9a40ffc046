package featureflags

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository   Repository
	Logger       zerolog.Logger
	CacheTTL     time.Duration // How long to cache flags in memory
	DefaultFlags map[string]*Flag
}

// Service evaluates flags with an in-memory cache and falls back to defaults
// when the repository is unavailable.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	cacheTTL     time.Duration
	defaultFlags map[string]*Flag

	mu          sync.RWMutex
	cache       map[string]*Flag
	cacheExpiry time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}

	defaultFlags := cfg.DefaultFlags
	if defaultFlags == nil {
		defaultFlags = DefaultFlags()
	}

	return &Service{
		repo:         cfg.Repository,
		logger:       cfg.Logger,
		cacheTTL:     cacheTTL,
		defaultFlags: defaultFlags,
		cache:        make(map[string]*Flag),
	}
}

// GetFlag returns the cached, stored or default flag, in that order. Nil when
// the key is unknown everywhere.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if flag := s.getCached(key); flag != nil {
		return flag
	}

	flag, err := s.repo.GetFlag(ctx, key)
	if err == nil {
		s.setCached(key, flag)
		return flag
	}
	if !errors.Is(err, ErrFlagNotFound) {
		s.logger.Warn().Err(err).Str("flag", key).Msg("failed to get feature flag from repository")
	}

	return s.defaultFlags[key]
}

// List returns every flag, stored values over defaults, sorted by key.
func (s *Service) List(ctx context.Context) FlagList {
	merged := maps.Clone(s.defaultFlags)

	flags, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to get feature flags from repository, using defaults")
	} else {
		maps.Copy(merged, flags)

		s.mu.Lock()
		s.cache = flags
		s.cacheExpiry = time.Now().Add(s.cacheTTL)
		s.mu.Unlock()
	}

	list := FlagList{Items: make([]Flag, 0, len(merged))}
	for _, key := range slices.Sorted(maps.Keys(merged)) {
		list.Items = append(list.Items, *merged[key])
	}
	return list
}

// Update validates and applies an operator request.
func (s *Service) Update(ctx context.Context, req FlagUpdateRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	now := time.Now()
	flags := make([]*Flag, 0, len(req.Updates))
	for _, u := range req.Updates {
		flags = append(flags, &Flag{Key: u.Key, Value: u.Value, UpdatedAt: now})
	}
	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return err
	}

	s.mu.Lock()
	for _, flag := range flags {
		s.cache[flag.Key] = flag
	}
	s.mu.Unlock()

	s.logger.Info().
		Int("updates", len(flags)).
		Str("reason", req.Reason).
		Msg("feature flags updated")
	return nil
}

// InvalidateCache clears the cached flags, forcing a refresh on next access.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Flag)
	s.cacheExpiry = time.Time{}
}

// IsEnabled reports whether a boolean flag is on. Unknown flags are off.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

func (s *Service) getCached(key string) *Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if time.Now().After(s.cacheExpiry) {
		return nil
	}
	return s.cache[key]
}

func (s *Service) setCached(key string, flag *Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[key] = flag
	if s.cacheExpiry.Before(time.Now()) {
		s.cacheExpiry = time.Now().Add(s.cacheTTL)
	}
}
