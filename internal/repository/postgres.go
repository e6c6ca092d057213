package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/UnknownOlympus/patrol/internal/models"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	createTableQuery = `
		CREATE TABLE IF NOT EXISTS geocode_cache (
			cache_key    TEXT PRIMARY KEY,
			lat          DOUBLE PRECISION,
			lon          DOUBLE PRECISION,
			label        TEXT NOT NULL DEFAULT '',
			provider     TEXT NOT NULL DEFAULT '',
			last_attempt TEXT NOT NULL DEFAULT '',
			updated_at   TEXT NOT NULL DEFAULT ''
		);
	`

	loadQuery = `
		SELECT cache_key, lat, lon, label, provider, last_attempt, updated_at
		FROM geocode_cache;
	`

	upsertQuery = `
		INSERT INTO geocode_cache (cache_key, lat, lon, label, provider, last_attempt, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cache_key) DO UPDATE SET
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			label = EXCLUDED.label,
			provider = EXCLUDED.provider,
			last_attempt = EXCLUDED.last_attempt,
			updated_at = EXCLUDED.updated_at;
	`
)

// EnsureSchema creates the geocode_cache table when it does not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createTableQuery); err != nil {
		return fmt.Errorf("failed to create geocode cache table: %w", err)
	}

	return nil
}

// Load retrieves every cached geocoding outcome keyed by normalized address.
//
// Parameters:
// - ctx: The context for the operation, allowing for cancellation and timeout.
//
// Returns:
// - A map of cache key to models.CacheEntry.
// - An error if the query fails or if there is an issue scanning the results.
func (r *Repository) Load(ctx context.Context) (map[string]models.CacheEntry, error) {
	rows, err := r.db.Query(ctx, loadQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query geocode cache: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]models.CacheEntry)
	for rows.Next() {
		var (
			key      string
			lat, lon pgtype.Float8
			entry    models.CacheEntry
		)
		if errScan := rows.Scan(
			&key, &lat, &lon, &entry.Label, &entry.Provider, &entry.LastAttempt, &entry.UpdatedAt,
		); errScan != nil {
			return nil, fmt.Errorf("failed to scan geocode cache entry: %w", errScan)
		}
		entry.Lat = nullableFloat(lat)
		entry.Lon = nullableFloat(lon)
		entries[key] = entry
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	r.log.DebugContext(ctx, "Geocode cache loaded from database", "count", len(entries))

	return entries, nil
}

// Save upserts every entry of the snapshot inside a single transaction, so the table
// never holds half of a snapshot. Keys are written in sorted order.
func (r *Repository) Save(ctx context.Context, entries map[string]models.CacheEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		entry := entries[key]
		if _, err = tx.Exec(ctx, upsertQuery,
			key, entry.Lat, entry.Lon, entry.Label, entry.Provider, entry.LastAttempt, entry.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert geocode cache entry %q: %w", key, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit geocode cache: %w", err)
	}

	return nil
}

func nullableFloat(value pgtype.Float8) *float64 {
	if !value.Valid {
		return nil
	}

	return &value.Float64
}
