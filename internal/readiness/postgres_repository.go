package readiness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS readiness_snapshots (
		id              UUID PRIMARY KEY,
		user_id         TEXT NOT NULL,
		captured_at     TIMESTAMPTZ NOT NULL,
		metrics         JSONB NOT NULL,
		readiness_score SMALLINT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		source          TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS readiness_snapshots_user_captured_idx
		ON readiness_snapshots (user_id, captured_at DESC);
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL readiness repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating readiness schema: %w", err)
	}
	return nil
}

// Save persists a snapshot.
func (r *PostgresRepository) Save(ctx context.Context, snapshot *Snapshot) error {
	query := `
		INSERT INTO readiness_snapshots (id, user_id, captured_at, metrics, readiness_score, created_at, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	metricsJSON, err := json.Marshal(snapshot.Metrics)
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}

	_, err = r.pool.Exec(ctx, query,
		snapshot.ID,
		snapshot.UserID,
		snapshot.CapturedAt,
		metricsJSON,
		snapshot.ReadinessScore,
		snapshot.CreatedAt,
		snapshot.Source,
	)
	if err != nil {
		return fmt.Errorf("inserting readiness snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recently captured snapshot for a user.
func (r *PostgresRepository) Latest(ctx context.Context, userID string) (*Snapshot, error) {
	query := `
		SELECT id, user_id, captured_at, metrics, readiness_score, created_at, source
		FROM readiness_snapshots
		WHERE user_id = $1
		ORDER BY captured_at DESC
		LIMIT 1
	`

	snapshot, err := scanSnapshot(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return snapshot, nil
}

// List returns up to limit snapshots for a user, newest first.
func (r *PostgresRepository) List(ctx context.Context, userID string, limit int) ([]*Snapshot, error) {
	query := `
		SELECT id, user_id, captured_at, metrics, readiness_score, created_at, source
		FROM readiness_snapshots
		WHERE user_id = $1
		ORDER BY captured_at DESC
		LIMIT $2
	`
	if limit <= 0 {
		limit = 30
	}

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var (
		s           Snapshot
		metricsJSON []byte
	)

	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.CapturedAt,
		&metricsJSON,
		&s.ReadinessScore,
		&s.CreatedAt,
		&s.Source,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metricsJSON, &s.Metrics); err != nil {
		return nil, fmt.Errorf("decoding metrics: %w", err)
	}
	return &s, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
