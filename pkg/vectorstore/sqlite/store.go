// Package sqlite is a local vector store. Embeddings are kept as JSON arrays
// and ranked by brute-force cosine similarity, which is fine for datasets of a
// few thousand movies.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/marquee-ai/marquee/pkg/models"
	"github.com/marquee-ai/marquee/pkg/vectorstore"
)

const createMoviesTable = `
CREATE TABLE IF NOT EXISTS movie_embeddings (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	plot TEXT NOT NULL DEFAULT '',
	year INTEGER NOT NULL DEFAULT 0,
	genres TEXT NOT NULL DEFAULT '[]',
	embedding TEXT NOT NULL
);
`

// Store implements vectorstore.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ vectorstore.Store = (*Store)(nil)

// New opens (or creates) the embeddings table in the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	if _, err := db.Exec(createMoviesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate vector db: %w", err)
	}
	return &Store{db: db}, nil
}

// Search scans every row. Ties keep insertion order. A query vector whose
// length differs from any stored embedding is an error.
func (s *Store) Search(ctx context.Context, vec []float32, k int) ([]models.Movie, error) {
	if k <= 0 {
		return []models.Movie{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, plot, year, genres, embedding FROM movie_embeddings ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("vector scan: %w", err)
	}
	defer rows.Close()

	var movies []models.Movie
	for rows.Next() {
		var m models.Movie
		var genres, embedding []byte
		if err := rows.Scan(&m.ID, &m.Title, &m.Plot, &m.Year, &genres, &embedding); err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		if err := json.Unmarshal(genres, &m.Genres); err != nil {
			return nil, fmt.Errorf("decode genres for %s: %w", m.ID, err)
		}
		var stored []float32
		if err := json.Unmarshal(embedding, &stored); err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", m.ID, err)
		}
		if len(stored) != len(vec) {
			return nil, fmt.Errorf("%w: query has %d dimensions, %s has %d",
				vectorstore.ErrDimensionMismatch, len(vec), m.ID, len(stored))
		}
		m.Score = vectorstore.Cosine(vec, stored)
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(movies, func(i, j int) bool { return movies[i].Score > movies[j].Score })
	if len(movies) > k {
		movies = movies[:k]
	}
	if movies == nil {
		movies = []models.Movie{}
	}
	return movies, nil
}

// Upsert writes all documents in one transaction.
func (s *Store) Upsert(ctx context.Context, docs []models.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO movie_embeddings (id, title, plot, year, genres, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, plot = excluded.plot, year = excluded.year,
			genres = excluded.genres, embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		genres := d.Movie.Genres
		if genres == nil {
			genres = []string{}
		}
		g, err := json.Marshal(genres)
		if err != nil {
			return fmt.Errorf("encode genres: %w", err)
		}
		e, err := json.Marshal(d.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, d.Movie.ID, d.Movie.Title, d.Movie.Plot, d.Movie.Year, g, e); err != nil {
			return fmt.Errorf("upsert %s: %w", d.Movie.ID, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored movies.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movie_embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return n, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
