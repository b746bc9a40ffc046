package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	_ "time/tzdata" // zone lookups must not depend on the host

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ResolverConfig holds configuration for the availability resolver.
type ResolverConfig struct {
	// Source fetches schedule months on a cache miss.
	Source ScheduleSource

	// Logger for resolver operations.
	Logger zerolog.Logger

	// TTL is how long a fetched month is served (default: 6 hours).
	TTL time.Duration

	// Observer receives cache hit/miss notifications (optional).
	Observer CacheObserver

	// Now overrides the clock. Used by tests.
	Now func() time.Time
}

type cachedSchedule struct {
	schedule  Schedule
	fetchedAt time.Time
	expiresAt time.Time
}

// Resolver answers availability questions from a per-month schedule cache.
// Safe for concurrent use.
type Resolver struct {
	source   ScheduleSource
	logger   zerolog.Logger
	ttl      time.Duration
	observer CacheObserver
	now      func() time.Time

	mu     sync.RWMutex
	cache  map[string]*cachedSchedule
	group  singleflight.Group
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewResolver creates a new availability resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultScheduleTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Resolver{
		source:   cfg.Source,
		logger:   cfg.Logger,
		ttl:      ttl,
		observer: cfg.Observer,
		now:      now,
		cache:    make(map[string]*cachedSchedule),
	}
}

// Resolve returns the worlds open on the requested day. An empty date means
// today in the requested time zone; an unknown zone falls back to UTC.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*WorldAvailability, error) {
	loc, tzName := ResolveLocation(req.Timezone)

	day, err := r.resolveDay(req.Date, loc)
	if err != nil {
		return nil, err
	}

	schedule, err := r.schedule(ctx, day.Year(), day.Month())
	if err != nil {
		return nil, err
	}

	date := day.Format(time.DateOnly)
	guest := append([]string{}, schedule[date]...)

	return &WorldAvailability{
		Date:            date,
		Timezone:        tzName,
		GuestWorlds:     guest,
		AvailableWorlds: AvailableWorlds(guest),
	}, nil
}

// Schedule returns a copy of the cached month, fetching it when missing or expired.
func (r *Resolver) Schedule(ctx context.Context, year int, month time.Month) (Schedule, error) {
	s, err := r.schedule(ctx, year, month)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// Refresh fetches a month unconditionally and replaces the cached entry.
func (r *Resolver) Refresh(ctx context.Context, year int, month time.Month) error {
	key := cacheKey(year, month)
	_, err, _ := r.group.Do(key, func() (any, error) {
		return r.fetch(context.WithoutCancel(ctx), key, year, month)
	})
	return err
}

// Invalidate drops every cached month.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*cachedSchedule)
}

// CacheStats returns cache statistics.
func (r *Resolver) CacheStats() CacheStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	stats := CacheStats{
		Entries: len(r.cache),
		Hits:    r.hits.Load(),
		Misses:  r.misses.Load(),
	}
	for _, c := range r.cache {
		if now.Before(c.expiresAt) {
			stats.Fresh++
		} else {
			stats.Expired++
		}
	}
	return stats
}

func (r *Resolver) schedule(ctx context.Context, year int, month time.Month) (Schedule, error) {
	key := cacheKey(year, month)

	if s, ok := r.lookup(key); ok {
		r.observe(true)
		r.logger.Debug().Str("cache_key", key).Msg("cache hit for schedule")
		return s, nil
	}
	r.observe(false)

	v, err, _ := r.group.Do(key, func() (any, error) {
		// another caller may have filled the entry while we waited
		if s, ok := r.lookup(key); ok {
			return s, nil
		}
		return r.fetch(context.WithoutCancel(ctx), key, year, month)
	})
	if err != nil {
		return nil, err
	}
	return v.(Schedule), nil
}

func (r *Resolver) lookup(key string) (Schedule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cached, ok := r.cache[key]
	if !ok || !r.now().Before(cached.expiresAt) {
		return nil, false
	}
	return cached.schedule, true
}

func (r *Resolver) fetch(ctx context.Context, key string, year int, month time.Month) (Schedule, error) {
	if r.source == nil {
		return nil, ErrNoSource
	}

	r.logger.Debug().
		Str("cache_key", key).
		Str("source", r.source.Name()).
		Msg("fetching world schedule")

	schedule, err := r.source.FetchSchedule(ctx, year, month)
	if err != nil {
		r.logger.Error().Err(err).Str("cache_key", key).Msg("failed to fetch world schedule")
		if !errors.Is(err, ErrScheduleUnavailable) {
			err = fmt.Errorf("%w: %w", ErrScheduleUnavailable, err)
		}
		return nil, err
	}
	if schedule == nil {
		schedule = Schedule{}
	}

	now := r.now()
	entry := &cachedSchedule{
		schedule:  schedule,
		fetchedAt: now,
		expiresAt: now.Add(r.ttl),
	}

	r.mu.Lock()
	r.cache[key] = entry
	for k, c := range r.cache {
		if !now.Before(c.expiresAt) {
			delete(r.cache, k)
		}
	}
	r.mu.Unlock()

	r.logger.Debug().
		Str("cache_key", key).
		Int("days", len(schedule)).
		Msg("cached world schedule")

	return schedule, nil
}

func (r *Resolver) observe(hit bool) {
	if hit {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
	if r.observer != nil {
		r.observer.ObserveScheduleLookup(hit)
	}
}

func (r *Resolver) resolveDay(date string, loc *time.Location) (time.Time, error) {
	if date == "" {
		return r.now().In(loc), nil
	}
	day, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return day, nil
}

// ParseDate parses a strict YYYY-MM-DD calendar date.
func ParseDate(date string) (time.Time, error) {
	if len(date) != len(time.DateOnly) {
		return time.Time{}, ErrInvalidDate
	}
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return day, nil
}

// ResolveLocation loads an IANA time zone, falling back to UTC when the name
// is empty or unknown. The returned name is the one actually used.
func ResolveLocation(name string) (*time.Location, string) {
	if name == "" || name == "Local" {
		return time.UTC, DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, DefaultTimezone
	}
	return loc, name
}

func cacheKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}
