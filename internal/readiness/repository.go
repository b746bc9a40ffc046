package readiness

import "context"

// Repository stores readiness snapshots.
type Repository interface {
	// Save persists a snapshot. The snapshot ID must already be set.
	Save(ctx context.Context, snapshot *Snapshot) error

	// Latest returns the most recently captured snapshot for a user.
	Latest(ctx context.Context, userID string) (*Snapshot, error)

	// List returns up to limit snapshots for a user, newest first.
	List(ctx context.Context, userID string, limit int) ([]*Snapshot, error)
}
