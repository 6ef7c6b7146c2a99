// Package vectorstore defines the similarity search boundary used by retrieval
// and ingest. Backends live in subpackages.
package vectorstore

import (
	"context"
	"errors"
	"math"

	"github.com/marquee-ai/marquee/pkg/models"
)

// ErrDimensionMismatch is returned when a query vector and a stored embedding
// have different lengths.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Store searches and loads movie embeddings.
type Store interface {
	// Search returns up to k movies ranked by descending similarity to vec.
	// Each movie's Score is its similarity.
	Search(ctx context.Context, vec []float32, k int) ([]models.Movie, error)
	// Upsert inserts or replaces documents by movie ID.
	Upsert(ctx context.Context, docs []models.Document) error
	// Close releases backend resources.
	Close() error
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths differ
// or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
