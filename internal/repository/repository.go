// Package repository persists the sermon feed fetch log in PostgreSQL.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/church-web/sermon-feed-go/internal/db"
	"github.com/church-web/sermon-feed-go/internal/models"
)

// MaxRecentFetches caps RecentFetches.
const MaxRecentFetches = 200

// Repository handles all database operations for the fetch log.
type Repository struct {
	db *pgxpool.Pool
}

// New creates a new Repository instance with the provided database connection pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const fetchColumns = `id, channel_id, source, path, status, video_count, video_ids,
		       content_hash, warning, duration_ms, fetched_at`

// RecordFetch inserts one fetch log row.
func (r *Repository) RecordFetch(ctx context.Context, rec *models.FetchRecord) error {
	query := `
		INSERT INTO sermon_feed.fetch_log
		(id, channel_id, source, path, status, video_count, video_ids, content_hash, warning, duration_ms, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	ids := rec.VideoIDs
	if ids == nil {
		ids = []string{}
	}

	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.ChannelID, rec.Source, rec.Path, rec.Status, rec.VideoCount,
		ids, rec.ContentHash, rec.Warning, rec.DurationMS, rec.FetchedAt,
	)
	return db.WrapError(err, "record fetch")
}

// LatestFetch returns the newest live fetch for a channel, or db.ErrNotFound.
// Fallback rows are skipped since they say nothing about the channel's content.
func (r *Repository) LatestFetch(ctx context.Context, channelID string) (*models.FetchRecord, error) {
	query := `
		SELECT ` + fetchColumns + `
		FROM sermon_feed.fetch_log
		WHERE channel_id = $1 AND status = 'live'
		ORDER BY fetched_at DESC
		LIMIT 1
	`
	rec, err := scanFetch(r.db.QueryRow(ctx, query, channelID))
	if err != nil {
		return nil, db.WrapError(err, "latest fetch")
	}
	return rec, nil
}

// RecentFetches lists up to limit fetches for a channel, newest first.
func (r *Repository) RecentFetches(ctx context.Context, channelID string, limit int) ([]*models.FetchRecord, error) {
	if limit <= 0 || limit > MaxRecentFetches {
		limit = MaxRecentFetches
	}

	query := `
		SELECT ` + fetchColumns + `
		FROM sermon_feed.fetch_log
		WHERE channel_id = $1
		ORDER BY fetched_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, channelID, limit)
	if err != nil {
		return nil, db.WrapError(err, "recent fetches")
	}
	defer rows.Close()

	var out []*models.FetchRecord
	for rows.Next() {
		rec, err := scanFetch(rows)
		if err != nil {
			return nil, db.WrapError(err, "scan fetch")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "iterate fetches")
	}
	return out, nil
}

// Ping checks the database connection health.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func scanFetch(row pgx.Row) (*models.FetchRecord, error) {
	var rec models.FetchRecord
	err := row.Scan(
		&rec.ID, &rec.ChannelID, &rec.Source, &rec.Path, &rec.Status, &rec.VideoCount,
		&rec.VideoIDs, &rec.ContentHash, &rec.Warning, &rec.DurationMS, &rec.FetchedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
