package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/routecast/routecast/internal/corridor"
	"github.com/routecast/routecast/internal/routing"
)

// PostgresRepository is a PostgreSQL implementation of Repository. The
// corridor result is stored as a JSONB payload.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL prediction repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Schema creates the predictions table when it does not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	profile          TEXT NOT NULL,
	origin_name      TEXT NOT NULL DEFAULT '',
	origin_lat       DOUBLE PRECISION NOT NULL,
	origin_lon       DOUBLE PRECISION NOT NULL,
	destination_name TEXT NOT NULL DEFAULT '',
	destination_lat  DOUBLE PRECISION NOT NULL,
	destination_lon  DOUBLE PRECISION NOT NULL,
	payload          JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS predictions_user_created_idx
	ON predictions (user_id, created_at DESC, id DESC);
`

// EnsureSchema applies Schema.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure predictions schema: %w", err)
	}
	return nil
}

const selectColumns = `
	id, user_id, profile,
	origin_name, origin_lat, origin_lon,
	destination_name, destination_lat, destination_lon,
	payload, created_at`

// Get retrieves a prediction by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Record, error) {
	query := `SELECT ` + selectColumns + ` FROM predictions WHERE id = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPredictionNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Put stores a prediction, replacing any previous value with the same ID.
func (r *PostgresRepository) Put(ctx context.Context, rec *Record) error {
	payload, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("encode prediction payload: %w", err)
	}

	query := `
		INSERT INTO predictions (
			id, user_id, profile,
			origin_name, origin_lat, origin_lon,
			destination_name, destination_lat, destination_lon,
			payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			profile = EXCLUDED.profile,
			payload = EXCLUDED.payload
	`

	_, err = r.pool.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		string(rec.Profile),
		rec.Origin.Name,
		rec.Origin.Lat,
		rec.Origin.Lon,
		rec.Destination.Name,
		rec.Destination.Lat,
		rec.Destination.Lon,
		payload,
		rec.CreatedAt,
	)
	return err
}

// List retrieves a user's predictions, newest first, using keyset
// pagination on (created_at, id).
func (r *PostgresRepository) List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error) {
	limit := listLimit(opts)
	// Fetch one extra to determine if there are more results
	fetchLimit := limit + 1

	query := `SELECT ` + selectColumns + `
		FROM predictions
		WHERE user_id = $1
		  AND ($2 = '' OR (created_at, id) < (
			SELECT created_at, id FROM predictions WHERE id = $2
		  ))
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, userID, opts.Cursor, fetchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{Items: recs}
	if len(recs) > limit {
		result.Items = recs[:limit]
		result.NextCursor = recs[limit-1].ID
	}

	return result, nil
}

// Delete deletes a prediction by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM predictions WHERE id = $1`, id)
	return err
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec     Record
		profile string
		payload []byte
	)

	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&profile,
		&rec.Origin.Name,
		&rec.Origin.Lat,
		&rec.Origin.Lon,
		&rec.Destination.Name,
		&rec.Destination.Lat,
		&rec.Destination.Lon,
		&payload,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Profile = routing.RouteProfile(profile)
	rec.Result = &corridor.Prediction{}
	if err := json.Unmarshal(payload, rec.Result); err != nil {
		return nil, fmt.Errorf("decode prediction payload %s: %w", rec.ID, err)
	}

	return &rec, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
