// Package retrieve runs similarity search over a fixed candidate pool and
// narrows the ranked candidates with year and genre filters.
package retrieve

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marquee-ai/marquee/pkg/logging"
	"github.com/marquee-ai/marquee/pkg/metrics"
	"github.com/marquee-ai/marquee/pkg/models"
	"github.com/marquee-ai/marquee/pkg/vectorstore"
)

// CandidatePool is how many neighbours are fetched before filtering,
// independent of the requested limit.
const CandidatePool = 100

// Retriever searches a vector store.
type Retriever struct {
	store vectorstore.Store
	log   zerolog.Logger
}

// New creates a Retriever over store.
func New(store vectorstore.Store) *Retriever {
	return &Retriever{store: store, log: logging.WithComponent("retrieve")}
}

// Retrieve returns at most limit movies matching f, ordered by f.SortBy.
// Search failures are logged and yield an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, vec []float32, f models.Filter, limit int) []models.Movie {
	start := time.Now()
	candidates, err := r.store.Search(ctx, vec, CandidatePool)
	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RetrievalErrors.Inc()
		logging.Ctx(ctx).Error().Err(err).Str("component", "retrieve").Msg("vector search failed")
		return []models.Movie{}
	}
	return Apply(candidates, f, limit)
}

// Apply filters, sorts and truncates ranked candidates. The input is not modified.
func Apply(candidates []models.Movie, f models.Filter, limit int) []models.Movie {
	out := make([]models.Movie, 0, len(candidates))
	for _, m := range candidates {
		if f.HasYearRange() && (m.Year < *f.YearStart || m.Year > *f.YearEnd) {
			continue
		}
		if len(f.Genres) > 0 && !m.HasAnyGenre(f.Genres) {
			continue
		}
		out = append(out, m)
	}

	if less := lessFunc(f.SortBy, out); less != nil {
		sort.SliceStable(out, less)
	}

	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func lessFunc(mode models.SortMode, ms []models.Movie) func(i, j int) bool {
	switch mode {
	case models.SortYearDesc:
		return func(i, j int) bool { return ms[i].Year > ms[j].Year }
	case models.SortYearAsc:
		return func(i, j int) bool { return ms[i].Year < ms[j].Year }
	case models.SortTitleAsc:
		return func(i, j int) bool { return strings.Compare(ms[i].Title, ms[j].Title) < 0 }
	case models.SortTitleDesc:
		return func(i, j int) bool { return strings.Compare(ms[i].Title, ms[j].Title) > 0 }
	default:
		return nil
	}
}
