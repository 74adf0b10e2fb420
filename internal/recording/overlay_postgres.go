package recording

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const overlayTimeout = 5 * time.Second

// PostgresOverlay keeps display names in the recording_metadata table.
// Each Set and Remove is a single statement, so concurrent writers never
// clobber unrelated keys.
type PostgresOverlay struct {
	pool *pgxpool.Pool
}

// NewPostgresOverlay builds an overlay backed by pool.
func NewPostgresOverlay(pool *pgxpool.Pool) *PostgresOverlay {
	return &PostgresOverlay{pool: pool}
}

// EnsureSchema creates the recording_metadata table when missing.
func (o *PostgresOverlay) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, overlayTimeout)
	defer cancel()

	query := `
CREATE TABLE IF NOT EXISTS recording_metadata (
    filename    TEXT PRIMARY KEY,
    custom_name TEXT NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

	if _, err := o.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure recording_metadata: %w", err)
	}
	return nil
}

// Load returns every stored annotation.
func (o *PostgresOverlay) Load(ctx context.Context) (map[string]Meta, error) {
	ctx, cancel := context.WithTimeout(ctx, overlayTimeout)
	defer cancel()

	rows, err := o.pool.Query(ctx, `SELECT filename, custom_name, updated_at FROM recording_metadata;`)
	if err != nil {
		return nil, fmt.Errorf("load recording metadata: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Meta)
	for rows.Next() {
		var (
			filename string
			meta     Meta
		)
		if err := rows.Scan(&filename, &meta.CustomName, &meta.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan recording metadata: %w", err)
		}
		out[filename] = meta
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recording metadata: %w", err)
	}
	return out, nil
}

// Set upserts the display name for filename.
func (o *PostgresOverlay) Set(ctx context.Context, filename, customName string) error {
	ctx, cancel := context.WithTimeout(ctx, overlayTimeout)
	defer cancel()

	query := `
INSERT INTO recording_metadata (filename, custom_name, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (filename) DO UPDATE
SET custom_name = EXCLUDED.custom_name,
    updated_at = EXCLUDED.updated_at;`

	if _, err := o.pool.Exec(ctx, query, filename, customName); err != nil {
		return fmt.Errorf("set recording metadata: %w", err)
	}
	return nil
}

// Remove deletes the annotation for filename if there is one.
func (o *PostgresOverlay) Remove(ctx context.Context, filename string) error {
	ctx, cancel := context.WithTimeout(ctx, overlayTimeout)
	defer cancel()

	if _, err := o.pool.Exec(ctx, `DELETE FROM recording_metadata WHERE filename = $1;`, filename); err != nil {
		return fmt.Errorf("remove recording metadata: %w", err)
	}
	return nil
}
