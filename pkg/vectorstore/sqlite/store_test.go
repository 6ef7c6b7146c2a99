package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/marquee-ai/marquee/pkg/models"
	"github.com/marquee-ai/marquee/pkg/vectorstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "vectors.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func docs() []models.Document {
	return []models.Document{
		{Movie: models.Movie{ID: "a", Title: "Alien", Year: 1979, Genres: []string{"Horror", "Sci-Fi"}}, Embedding: []float32{1, 0, 0}},
		{Movie: models.Movie{ID: "b", Title: "Heat", Year: 1995, Genres: []string{"Crime"}}, Embedding: []float32{0, 1, 0}},
		{Movie: models.Movie{ID: "c", Title: "Aliens", Year: 1986, Genres: []string{"Action", "Sci-Fi"}}, Embedding: []float32{0.9, 0.1, 0}},
	}
}

func TestSearchRanksBySimilarity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Upsert(ctx, docs()); err != nil {
		t.Fatal(err)
	}

	got, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 movies, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("scores not descending: %v < %v", got[0].Score, got[1].Score)
	}
	if len(got[1].Genres) != 2 || got[1].Genres[1] != "Sci-Fi" {
		t.Errorf("genres not round-tripped: %v", got[1].Genres)
	}
}

func TestUpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Upsert(ctx, docs()); err != nil {
		t.Fatal(err)
	}
	updated := models.Document{
		Movie:     models.Movie{ID: "b", Title: "Heat (1995)", Year: 1995},
		Embedding: []float32{1, 0, 0},
	}
	if err := s.Upsert(ctx, []models.Document{updated}); err != nil {
		t.Fatal(err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows, got %d", n)
	}

	got, err := s.Search(ctx, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	// a and b now tie; insertion order wins.
	if got[0].ID != "a" {
		t.Errorf("expected a first, got %s", got[0].ID)
	}
	if got[0].Genres == nil {
		t.Error("genres should decode to an empty slice, not nil")
	}
}

func TestSearchEmpty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Search(context.Background(), []float32{1}, 100)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Upsert(ctx, docs()); err != nil {
		t.Fatal(err)
	}

	got, err := s.Search(ctx, []float32{1, 0}, 100)
	if !errors.Is(err, vectorstore.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if got != nil {
		t.Errorf("expected no movies, got %d", len(got))
	}
}
