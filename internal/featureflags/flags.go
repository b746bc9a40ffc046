// Package featureflags provides runtime switches for provider-backed features.
package featureflags

import (
	"errors"
	"fmt"
	"time"
)

// Well-known feature flag keys.
const (
	// FlagDisableGarminSync turns off the wearable OAuth flow and readiness sync.
	FlagDisableGarminSync = "disable_garmin_sync"

	// FlagDisableFITImport turns off FIT file uploads.
	FlagDisableFITImport = "disable_fit_import"

	// FlagDisableRecommendations turns off the recommendation dashboard.
	FlagDisableRecommendations = "disable_recommendations"
)

// Validation errors for flag updates.
var (
	ErrUnknownFlag      = errors.New("unknown feature flag")
	ErrInvalidFlagValue = errors.New("feature flag value must be a boolean")
	ErrNoUpdates        = errors.New("no flag updates given")
)

// Flag is a feature flag with its current value.
type Flag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FlagList is the listing returned to operators.
type FlagList struct {
	Items []Flag `json:"items"`
}

// FlagUpdate is a single flag update.
type FlagUpdate struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// FlagUpdateRequest is an operator request to change flags.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates"`
	Reason  string       `json:"reason"`
}

// Validate checks every update names a known flag and carries a boolean.
func (r FlagUpdateRequest) Validate() error {
	if len(r.Updates) == 0 {
		return ErrNoUpdates
	}
	known := DefaultFlags()
	for _, u := range r.Updates {
		if _, ok := known[u.Key]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownFlag, u.Key)
		}
		if _, ok := u.Value.(bool); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidFlagValue, u.Key)
		}
	}
	return nil
}

// BoolValue returns the flag value as a boolean.
// Returns the default value if the flag is nil or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON unmarshals numbers as float64
		return v != 0
	default:
		return defaultValue
	}
}

// DefaultFlags returns the flags used when the repository has no value.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	return map[string]*Flag{
		FlagDisableGarminSync: {
			Key:       FlagDisableGarminSync,
			Value:     false,
			UpdatedAt: now,
		},
		FlagDisableFITImport: {
			Key:       FlagDisableFITImport,
			Value:     false,
			UpdatedAt: now,
		},
		FlagDisableRecommendations: {
			Key:       FlagDisableRecommendations,
			Value:     false,
			UpdatedAt: now,
		},
	}
}
