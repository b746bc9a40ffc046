// Package availability resolves which virtual worlds are open on a given day
// from the published monthly guest-world schedule.
package availability

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"
)

// Availability errors.
var (
	ErrInvalidDate         = errors.New("date must be in YYYY-MM-DD format")
	ErrScheduleUnavailable = errors.New("failed to fetch world schedule")
	ErrNoSource            = errors.New("schedule source not configured")
)

const (
	// BaselineWorld is open every day regardless of the guest schedule.
	BaselineWorld = "Watopia"

	// DefaultTimezone is used when no valid IANA zone is supplied.
	DefaultTimezone = "UTC"

	// DefaultScheduleTTL is how long a parsed month stays fresh.
	DefaultScheduleTTL = 6 * time.Hour
)

// Schedule maps a calendar day (YYYY-MM-DD) to its distinct guest worlds.
type Schedule map[string][]string

// Clone returns a deep copy.
func (s Schedule) Clone() Schedule {
	if s == nil {
		return nil
	}
	out := maps.Clone(s)
	for day, worlds := range out {
		out[day] = slices.Clone(worlds)
	}
	return out
}

// Request selects the day to resolve. Both fields are optional.
type Request struct {
	Date     string `json:"date,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// WorldAvailability lists the worlds open on one day.
type WorldAvailability struct {
	Date            string   `json:"date"`
	Timezone        string   `json:"timezone"`
	GuestWorlds     []string `json:"guestWorlds"`
	AvailableWorlds []string `json:"availableWorlds"`
}

// ScheduleSource fetches and parses one month of the guest-world schedule.
type ScheduleSource interface {
	FetchSchedule(ctx context.Context, year int, month time.Month) (Schedule, error)

	// Name returns the source name for logging.
	Name() string
}

// CacheObserver is told about every schedule cache lookup.
type CacheObserver interface {
	ObserveScheduleLookup(hit bool)
}

// CacheStats describes the schedule cache.
type CacheStats struct {
	Entries int    `json:"entries"`
	Fresh   int    `json:"fresh"`
	Expired int    `json:"expired"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// AvailableWorlds prepends the baseline world to the guest list, dropping
// duplicates while keeping first-seen order.
func AvailableWorlds(guest []string) []string {
	seen := make(map[string]struct{}, len(guest)+1)
	out := make([]string, 0, len(guest)+1)
	for _, w := range append([]string{BaselineWorld}, guest...) {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
