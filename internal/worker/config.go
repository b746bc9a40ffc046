// Package worker provides background job processing for RideDeck.
package worker

import (
	"time"

	"github.com/ridedeck/ridedeck/internal/availability"
)

// Job types accepted on the worker subscription.
const (
	JobScheduleRefresh = "schedule_refresh"
	JobHealthCheck     = "health_check"
)

// RefreshTarget is one schedule month to warm.
type RefreshTarget struct {
	Year  int
	Month time.Month
}

// Key returns the cache key of the target month.
func (t RefreshTarget) Key() string {
	return time.Date(t.Year, t.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// RefreshConfig holds configuration for the schedule refresh job.
type RefreshConfig struct {
	// Timezones whose current and next month are warmed.
	// Default: UTC
	Timezones []string

	// Concurrency is the number of concurrent month fetches.
	// Default: 3
	Concurrency int

	// Timeout bounds each month fetch.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Timezones:   []string{availability.DefaultTimezone},
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// Targets returns the distinct months to warm at now: the current and the
// next month as seen from every configured time zone, in first-seen order.
// Unknown zones fall back to UTC.
func (c RefreshConfig) Targets(now time.Time) []RefreshTarget {
	zones := c.Timezones
	if len(zones) == 0 {
		zones = []string{availability.DefaultTimezone}
	}

	seen := make(map[RefreshTarget]struct{})
	var targets []RefreshTarget
	for _, zone := range zones {
		loc, _ := availability.ResolveLocation(zone)
		local := now.In(loc)
		first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, time.UTC)

		for _, month := range []time.Time{first, first.AddDate(0, 1, 0)} {
			t := RefreshTarget{Year: month.Year(), Month: month.Month()}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			targets = append(targets, t)
		}
	}
	return targets
}
