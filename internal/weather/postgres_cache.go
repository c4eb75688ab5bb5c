package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CacheSchema creates the shared forecast cache table when it does not exist.
const CacheSchema = `
CREATE TABLE IF NOT EXISTS weather_cache (
	cache_key  TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL
);
`

// PostgresCache is a SharedCache kept in PostgreSQL. The prewarm worker
// writes it and API instances read it.
type PostgresCache struct {
	pool *pgxpool.Pool
}

// NewPostgresCache creates a shared cache on the given pool.
func NewPostgresCache(pool *pgxpool.Pool) *PostgresCache {
	return &PostgresCache{pool: pool}
}

// EnsureSchema applies CacheSchema.
func (c *PostgresCache) EnsureSchema(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, CacheSchema); err != nil {
		return fmt.Errorf("ensure weather cache schema: %w", err)
	}
	return nil
}

// Load returns the entry stored under key.
func (c *PostgresCache) Load(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	var (
		data      []byte
		fetchedAt time.Time
	)
	err := c.pool.QueryRow(ctx,
		`SELECT payload, fetched_at FROM weather_cache WHERE cache_key = $1`, key,
	).Scan(&data, &fetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("load weather cache entry: %w", err)
	}
	return data, fetchedAt, true, nil
}

// Store upserts the entry. An older write never replaces a newer one.
func (c *PostgresCache) Store(ctx context.Context, key string, data []byte, fetchedAt time.Time) error {
	query := `
		INSERT INTO weather_cache (cache_key, payload, fetched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (cache_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			fetched_at = EXCLUDED.fetched_at
		WHERE weather_cache.fetched_at < EXCLUDED.fetched_at
	`
	if _, err := c.pool.Exec(ctx, query, key, data, fetchedAt); err != nil {
		return fmt.Errorf("store weather cache entry: %w", err)
	}
	return nil
}

// Prune deletes entries fetched before the cutoff.
func (c *PostgresCache) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM weather_cache WHERE fetched_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune weather cache: %w", err)
	}
	return tag.RowsAffected(), nil
}
