package maintenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSettingsStore reads and writes the settings table.
//
// Schema:
//
//	CREATE TABLE settings (
//	    category   TEXT NOT NULL,
//	    key        TEXT NOT NULL,
//	    value      TEXT NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (category, key)
//	);
type PostgresSettingsStore struct {
	pool *pgxpool.Pool
}

func NewPostgresSettingsStore(pool *pgxpool.Pool) *PostgresSettingsStore {
	return &PostgresSettingsStore{pool: pool}
}

// Get returns the stored value, or "" when the key is absent.
func (s *PostgresSettingsStore) Get(ctx context.Context, category, key string) (string, error) {
	const query = `SELECT value FROM settings WHERE category = $1 AND key = $2`

	var value string
	err := s.pool.QueryRow(ctx, query, category, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s/%s: %w", category, key, err)
	}
	return value, nil
}

// Set upserts a value. Callers must invalidate the gate cache afterwards.
func (s *PostgresSettingsStore) Set(ctx context.Context, category, key, value string) error {
	const query = `
		INSERT INTO settings (category, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (category, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`
	if _, err := s.pool.Exec(ctx, query, category, key, value); err != nil {
		return fmt.Errorf("write setting %s/%s: %w", category, key, err)
	}
	return nil
}
