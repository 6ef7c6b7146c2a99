// Package postgres is a vector store on PostgreSQL with the pgvector extension.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/marquee-ai/marquee/pkg/models"
	"github.com/marquee-ai/marquee/pkg/vectorstore"
)

// Store implements vectorstore.Store with cosine distance ordering (<=>).
type Store struct {
	db    *sql.DB
	table string
}

var _ vectorstore.Store = (*Store)(nil)

// Open connects to dsn and ensures the table exists.
func Open(ctx context.Context, dsn, table string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := New(db, table)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database handle.
func New(db *sql.DB, table string) *Store {
	if table == "" {
		table = "movie_embeddings"
	}
	return &Store{db: db, table: pq.QuoteIdentifier(table)}
}

// Migrate creates the pgvector extension and the embeddings table.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			plot TEXT NOT NULL DEFAULT '',
			year INTEGER NOT NULL DEFAULT 0,
			genres TEXT[] NOT NULL DEFAULT '{}',
			embedding vector NOT NULL
		)`, s.table))
	if err != nil {
		return fmt.Errorf("create embeddings table: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vec []float32, k int) ([]models.Movie, error) {
	query := fmt.Sprintf(`
		SELECT id, title, plot, year, genres, 1 - (embedding <=> $1::vector) AS score
		FROM %s
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, s.table)

	rows, err := s.db.QueryContext(ctx, query, vectorLiteral(vec), k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	movies := []models.Movie{}
	for rows.Next() {
		var m models.Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.Plot, &m.Year, pq.Array(&m.Genres), &m.Score); err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

func (s *Store) Upsert(ctx context.Context, docs []models.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, title, plot, year, genres, embedding)
		VALUES ($1, $2, $3, $4, $5, $6::vector)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, plot = EXCLUDED.plot, year = EXCLUDED.year,
			genres = EXCLUDED.genres, embedding = EXCLUDED.embedding`, s.table)

	for _, d := range docs {
		genres := d.Movie.Genres
		if genres == nil {
			genres = []string{}
		}
		_, err := tx.ExecContext(ctx, query,
			d.Movie.ID, d.Movie.Title, d.Movie.Plot, d.Movie.Year, pq.Array(genres), vectorLiteral(d.Embedding))
		if err != nil {
			return fmt.Errorf("upsert %s: %w", d.Movie.ID, err)
		}
	}
	return tx.Commit()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// vectorLiteral formats v in pgvector text form, e.g. [0.1,0.2].
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
