// Package recommend answers movie queries: cache lookup, embedding, retrieval
// and answer composition, in that order.
package recommend

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/marquee-ai/marquee/pkg/cache"
	"github.com/marquee-ai/marquee/pkg/llm"
	"github.com/marquee-ai/marquee/pkg/logging"
	"github.com/marquee-ai/marquee/pkg/metrics"
	"github.com/marquee-ai/marquee/pkg/models"
	"github.com/marquee-ai/marquee/pkg/retrieve"
)

// Fixed answers for the short-circuit paths.
const (
	EmptyQueryAnswer = "I couldn't find any movies. Please provide a search query."
	NoResultsAnswer  = "I couldn't find any relevant movies. Please try a different query."
	ErrorAnswer      = "Sorry, I encountered an error processing your request."
)

// DefaultTopK is the result limit when neither the request nor the config sets one.
const DefaultTopK = 5

// Source says how a Result was produced.
type Source string

const (
	SourceCache      Source = "cache"
	SourceFresh      Source = "fresh"
	SourceEmptyQuery Source = "empty_query"
	SourceNoResults  Source = "no_results"
	SourceDegraded   Source = "degraded"
)

// Outcome describes a Recommend call for logging and history.
type Outcome struct {
	Source   Source
	Key      string
	Duration time.Duration
}

// Embedder converts the raw query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever returns filtered, sorted candidates.
type Retriever interface {
	Retrieve(ctx context.Context, vec []float32, f models.Filter, limit int) []models.Movie
}

// ResultCache stores finished results by key.
type ResultCache interface {
	Get(ctx context.Context, key string) (models.Result, bool)
	Put(ctx context.Context, key string, result models.Result) error
}

// Service is the recommendation orchestrator.
type Service struct {
	embedder  Embedder
	retriever Retriever
	composer  llm.Composer
	cache     ResultCache
	topK      int
}

// New wires a Service. cache may be nil to disable memoization.
func New(e Embedder, r Retriever, c llm.Composer, rc ResultCache, topK int) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Service{embedder: e, retriever: r, composer: c, cache: rc, topK: topK}
}

// Recommend answers query under f. It never returns an error: every failure
// maps to one of the fixed answers, and Outcome.Source says which path ran.
// Only freshly composed results are cached.
func (s *Service) Recommend(ctx context.Context, query string, f models.Filter) (res models.Result, out Outcome) {
	start := time.Now()
	log := logging.Ctx(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", debug.Stack()).Msg("recommendation panicked")
			res, out.Source = fixed(ErrorAnswer), SourceDegraded
		}
		out.Duration = time.Since(start)
		metrics.Recommendations.WithLabelValues(string(out.Source)).Inc()
	}()

	if strings.TrimSpace(query) == "" {
		out.Source = SourceEmptyQuery
		return fixed(EmptyQueryAnswer), out
	}

	f = s.normalize(f)
	out.Key = cache.Key(query, f)

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, out.Key); ok {
			out.Source = SourceCache
			return cached, out
		}
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Error().Err(err).Msg("embedding failed")
		out.Source = SourceNoResults
		return fixed(NoResultsAnswer), out
	}

	movies := s.retriever.Retrieve(ctx, vec, f, f.Limit)
	if len(movies) == 0 {
		out.Source = SourceNoResults
		return fixed(NoResultsAnswer), out
	}

	answer, err := s.composer.Compose(ctx, llm.BuildPrompt(query, movies))
	if err != nil {
		log.Error().Err(err).Int("movies", len(movies)).Msg("answer composition failed")
		out.Source = SourceNoResults
		return fixed(NoResultsAnswer), out
	}

	res = models.Result{Answer: answer, Movies: movies}
	if s.cache != nil {
		if err := s.cache.Put(ctx, out.Key, res); err != nil {
			log.Warn().Err(err).Str("key", out.Key).Msg("cache write failed")
		}
	}
	out.Source = SourceFresh
	return res, out
}

// normalize resolves the sort mode, cleans up genres and clamps the limit to
// 1..CandidatePool. The cache key and the retriever both see the result.
func (s *Service) normalize(f models.Filter) models.Filter {
	f.SortBy = models.ParseSortMode(string(f.SortBy))
	f.Genres = cache.NormalizeGenres(f.Genres)
	switch {
	case f.Limit <= 0:
		f.Limit = s.topK
	case f.Limit > retrieve.CandidatePool:
		f.Limit = retrieve.CandidatePool
	}
	return f
}

func fixed(answer string) models.Result {
	return models.Result{Answer: answer, Movies: []models.Movie{}}
}
