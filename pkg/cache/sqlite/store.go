package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/marquee-ai/marquee/pkg/models"
)

// Store is a recommendation cache backend on SQLite. Expired rows are removed
// by Purge, which the janitor runs on a schedule.
type Store struct {
	db *sql.DB
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS query_cache (
	cache_key TEXT PRIMARY KEY,
	result BLOB NOT NULL,
	stored_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_cache_stored_at ON query_cache(stored_at);
`

// New opens (or creates) the cache table in the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Store{db: db}, nil
}

// Load returns the entry for key. stored_at is kept as Unix nanoseconds.
func (s *Store) Load(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	var payload []byte
	var storedAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT result, stored_at FROM query_cache WHERE cache_key = ?`, key,
	).Scan(&payload, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("cache load: %w", err)
	}

	var result models.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("decode cached result: %w", err)
	}
	return models.CacheEntry{
		Key:      key,
		Result:   result,
		StoredAt: time.Unix(0, storedAt).UTC(),
	}, true, nil
}

// Save replaces the row for entry.Key in a single statement.
func (s *Store) Save(ctx context.Context, entry models.CacheEntry) error {
	payload, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO query_cache (cache_key, result, stored_at) VALUES (?, ?, ?)`,
		entry.Key, payload, entry.StoredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("cache save: %w", err)
	}
	return nil
}

// Purge deletes rows stored before cutoff.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM query_cache WHERE stored_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_cache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return count, nil
}

// Clear removes all rows.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM query_cache`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
