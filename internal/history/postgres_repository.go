package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breathway/breathway/internal/airquality"
)

// Schema creates the route history table.
const Schema = `
CREATE TABLE IF NOT EXISTS route_history (
	id                    TEXT PRIMARY KEY,
	user_id               TEXT NOT NULL,
	origin_name           TEXT NOT NULL DEFAULT '',
	origin_lat            DOUBLE PRECISION NOT NULL,
	origin_lon            DOUBLE PRECISION NOT NULL,
	origin_exposure       INTEGER NOT NULL,
	destination_name      TEXT NOT NULL DEFAULT '',
	destination_lat       DOUBLE PRECISION NOT NULL,
	destination_lon       DOUBLE PRECISION NOT NULL,
	destination_exposure  INTEGER NOT NULL,
	profile               TEXT NOT NULL,
	distance_km           DOUBLE PRECISION NOT NULL,
	duration_min          DOUBLE PRECISION NOT NULL,
	adjusted_duration_min DOUBLE PRECISION NOT NULL,
	exposure              INTEGER NOT NULL,
	label                 TEXT NOT NULL,
	source                TEXT NOT NULL,
	candidate_count       INTEGER NOT NULL,
	created_at            TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS route_history_user_created_idx ON route_history (user_id, created_at DESC);
`

const selectColumns = `
	id, user_id,
	origin_name, origin_lat, origin_lon, origin_exposure,
	destination_name, destination_lat, destination_lon, destination_exposure,
	profile, distance_km, duration_min, adjusted_duration_min,
	exposure, label, source, candidate_count, created_at
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL history repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate creates the table and index when missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate route_history: %w", err)
	}
	return nil
}

// Create stores a new record.
func (r *PostgresRepository) Create(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO route_history (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Origin.Name,
		rec.Origin.Point.Lat,
		rec.Origin.Point.Lon,
		int(rec.Origin.Exposure),
		rec.Destination.Name,
		rec.Destination.Point.Lat,
		rec.Destination.Point.Lon,
		int(rec.Destination.Exposure),
		rec.Profile,
		rec.DistanceKm,
		rec.DurationMin,
		rec.AdjustedDurationMin,
		int(rec.Exposure),
		rec.Label,
		rec.Source,
		rec.CandidateCount,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert route_history: %w", err)
	}
	return nil
}

// List returns a user's records, newest first.
func (r *PostgresRepository) List(ctx context.Context, userID string, opts ListOptions) ([]*Record, error) {
	query := `SELECT ` + selectColumns + ` FROM route_history WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if opts.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, opts.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query route_history: %w", err)
	}

	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("scan route_history: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.CollectableRow) (*Record, error) {
	var rec Record
	var originExp, destExp, routeExp int
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Origin.Name,
		&rec.Origin.Point.Lat,
		&rec.Origin.Point.Lon,
		&originExp,
		&rec.Destination.Name,
		&rec.Destination.Point.Lat,
		&rec.Destination.Point.Lon,
		&destExp,
		&rec.Profile,
		&rec.DistanceKm,
		&rec.DurationMin,
		&rec.AdjustedDurationMin,
		&routeExp,
		&rec.Label,
		&rec.Source,
		&rec.CandidateCount,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Origin.Exposure = airquality.Index(originExp)
	rec.Destination.Exposure = airquality.Index(destExp)
	rec.Exposure = airquality.Index(routeExp)
	return &rec, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
