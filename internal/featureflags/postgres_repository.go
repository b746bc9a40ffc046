package featureflags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS feature_flags (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
`

const upsertFlag = `
	INSERT INTO feature_flags (key, value, updated_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (key) DO UPDATE SET
		value = EXCLUDED.value,
		updated_at = EXCLUDED.updated_at
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL feature flags repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the flag table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating feature flag schema: %w", err)
	}
	return nil
}

// GetFlag retrieves a single feature flag by key.
func (r *PostgresRepository) GetFlag(ctx context.Context, key string) (*Flag, error) {
	query := `SELECT key, value, updated_at FROM feature_flags WHERE key = $1`

	flag, err := scanFlag(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFlagNotFound
		}
		return nil, err
	}
	return flag, nil
}

// GetAllFlags retrieves all stored feature flags.
func (r *PostgresRepository) GetAllFlags(ctx context.Context) (map[string]*Flag, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value, updated_at FROM feature_flags ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flags := make(map[string]*Flag)
	for rows.Next() {
		flag, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags[flag.Key] = flag
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return flags, nil
}

// SetFlags creates or updates multiple feature flags in one transaction.
func (r *PostgresRepository) SetFlags(ctx context.Context, flags []*Flag) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	now := time.Now()
	for _, flag := range flags {
		valueJSON, err := json.Marshal(flag.Value)
		if err != nil {
			return fmt.Errorf("encoding flag %s: %w", flag.Key, err)
		}
		if _, err := tx.Exec(ctx, upsertFlag, flag.Key, valueJSON, now); err != nil {
			return fmt.Errorf("storing flag %s: %w", flag.Key, err)
		}
	}

	return tx.Commit(ctx)
}

func scanFlag(row pgx.Row) (*Flag, error) {
	var (
		flag      Flag
		valueJSON []byte
	)
	if err := row.Scan(&flag.Key, &valueJSON, &flag.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(valueJSON, &flag.Value); err != nil {
		return nil, fmt.Errorf("decoding flag %s: %w", flag.Key, err)
	}
	return &flag, nil
}

var _ Repository = (*PostgresRepository)(nil)
