package featureflags

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository keeps flags in process memory.
type InMemoryRepository struct {
	mu    sync.RWMutex
	flags map[string]*Flag
}

// NewInMemoryRepository creates an empty repository; lookups fall back to
// the service defaults.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{flags: make(map[string]*Flag)}
}

// GetFlag returns a copy of the stored flag.
func (r *InMemoryRepository) GetFlag(_ context.Context, key string) (*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flag, ok := r.flags[key]
	if !ok {
		return nil, ErrFlagNotFound
	}
	cp := *flag
	return &cp, nil
}

// GetAllFlags returns copies of every stored flag.
func (r *InMemoryRepository) GetAllFlags(_ context.Context) (map[string]*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*Flag, len(r.flags))
	for k, v := range r.flags {
		cp := *v
		result[k] = &cp
	}
	return result, nil
}

// SetFlags creates or updates flags.
func (r *InMemoryRepository) SetFlags(_ context.Context, flags []*Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, flag := range flags {
		r.flags[flag.Key] = &Flag{Key: flag.Key, Value: flag.Value, UpdatedAt: now}
	}
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
