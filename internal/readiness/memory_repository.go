package readiness

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository for tests
// and local development.
type InMemoryRepository struct {
	mu        sync.RWMutex
	snapshots map[string][]*Snapshot
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		snapshots: make(map[string][]*Snapshot),
	}
}

// Save persists a snapshot.
func (r *InMemoryRepository) Save(_ context.Context, snapshot *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *snapshot
	list := append(r.snapshots[snapshot.UserID], &stored)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CapturedAt.After(list[j].CapturedAt)
	})
	r.snapshots[snapshot.UserID] = list
	return nil
}

// Latest returns the most recently captured snapshot for a user.
func (r *InMemoryRepository) Latest(_ context.Context, userID string) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.snapshots[userID]
	if len(list) == 0 {
		return nil, ErrSnapshotNotFound
	}
	latest := *list[0]
	return &latest, nil
}

// List returns up to limit snapshots for a user, newest first.
func (r *InMemoryRepository) List(_ context.Context, userID string, limit int) ([]*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.snapshots[userID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}

	result := make([]*Snapshot, 0, limit)
	for _, s := range list[:limit] {
		copied := *s
		result = append(result, &copied)
	}
	return result, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
