package featureflags

import (
	"context"
	"errors"
)

// ErrFlagNotFound is returned when a feature flag is not stored.
var ErrFlagNotFound = errors.New("feature flag not found")

// Repository stores flag overrides.
type Repository interface {
	GetFlag(ctx context.Context, key string) (*Flag, error)
	GetAllFlags(ctx context.Context) (map[string]*Flag, error)

	// SetFlags creates or updates flags atomically.
	SetFlags(ctx context.Context, flags []*Flag) error
}
