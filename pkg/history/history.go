// Package history keeps a log of served searches in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/marquee-ai/marquee/pkg/models"
)

// Recorder records and queries served searches.
type Recorder interface {
	// Record stores one search.
	Record(ctx context.Context, rec models.SearchRecord) error
	// Summary aggregates searches since a given time by result source.
	Summary(ctx context.Context, since time.Time) ([]models.SearchSummary, error)
	// TopQueries returns the n most frequent normalized queries since a given time.
	TopQueries(ctx context.Context, since time.Time, n int) ([]models.QueryCount, error)
	// Cleanup deletes searches older than the given time.
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
	// Close releases resources.
	Close() error
}

// SQLiteRecorder implements Recorder with a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS searches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	query TEXT NOT NULL,
	cache_key TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	movie_count INTEGER NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	client TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_searches_created ON searches(created_at);
`

// New creates a SQLiteRecorder and runs auto-migration.
func New(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	return &SQLiteRecorder{db: db}, nil
}

// Record stores a search. created_at is kept as Unix nanoseconds.
func (h *SQLiteRecorder) Record(ctx context.Context, rec models.SearchRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO searches (query, cache_key, source, movie_count, latency_ms, client, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Query, rec.CacheKey, rec.Source, rec.MovieCount, rec.LatencyMs, rec.Client, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record search: %w", err)
	}
	return nil
}

// Recent returns the latest searches, newest first.
func (h *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]models.SearchRecord, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, query, cache_key, source, movie_count, latency_ms, client, created_at
		 FROM searches ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent searches: %w", err)
	}
	defer rows.Close()

	var records []models.SearchRecord
	for rows.Next() {
		var r models.SearchRecord
		var created int64
		if err := rows.Scan(&r.ID, &r.Query, &r.CacheKey, &r.Source, &r.MovieCount, &r.LatencyMs, &r.Client, &created); err != nil {
			return nil, fmt.Errorf("scan search: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summary returns request counts, mean latency and movies served per source.
func (h *SQLiteRecorder) Summary(ctx context.Context, since time.Time) ([]models.SearchSummary, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT source, COUNT(*), AVG(latency_ms), SUM(movie_count)
		 FROM searches WHERE created_at >= ?
		 GROUP BY source ORDER BY COUNT(*) DESC, source`,
		since.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.SearchSummary
	for rows.Next() {
		var s models.SearchSummary
		if err := rows.Scan(&s.Source, &s.RequestCount, &s.AvgLatencyMs, &s.TotalMovies); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// TopQueries groups searches by lower-cased query text.
func (h *SQLiteRecorder) TopQueries(ctx context.Context, since time.Time, n int) ([]models.QueryCount, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT LOWER(TRIM(query)) AS q, COUNT(*), MAX(created_at)
		 FROM searches WHERE created_at >= ? AND TRIM(query) != ''
		 GROUP BY q ORDER BY COUNT(*) DESC, MAX(created_at) DESC LIMIT ?`,
		since.UnixNano(), n,
	)
	if err != nil {
		return nil, fmt.Errorf("top queries: %w", err)
	}
	defer rows.Close()

	var out []models.QueryCount
	for rows.Next() {
		var q models.QueryCount
		var last int64
		if err := rows.Scan(&q.Query, &q.Count, &last); err != nil {
			return nil, fmt.Errorf("scan top query: %w", err)
		}
		q.Last = time.Unix(0, last).UTC()
		out = append(out, q)
	}
	return out, rows.Err()
}

// Cleanup deletes searches created before olderThan.
func (h *SQLiteRecorder) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM searches WHERE created_at < ?`, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("history cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (h *SQLiteRecorder) Close() error {
	return h.db.Close()
}
