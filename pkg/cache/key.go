package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/marquee-ai/marquee/pkg/models"
)

// keyMaterial is the canonical form hashed into a cache key. Field order is
// fixed by the struct, absent year bounds encode as null and genres are sorted.
type keyMaterial struct {
	Query     string   `json:"query"`
	YearStart *int     `json:"year_start"`
	YearEnd   *int     `json:"year_end"`
	Genres    []string `json:"genres"`
	SortBy    string   `json:"sort_by"`
	Limit     int      `json:"limit"`
}

// Key derives the cache key for a query and filter.
func Key(query string, f models.Filter) string {
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = models.SortRelevance
	}
	data, err := json.Marshal(keyMaterial{
		Query:     NormalizeQuery(query),
		YearStart: f.YearStart,
		YearEnd:   f.YearEnd,
		Genres:    NormalizeGenres(f.Genres),
		SortBy:    string(sortBy),
		Limit:     f.Limit,
	})
	if err != nil {
		// Only strings, ints and pointers are marshalled; this cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NormalizeQuery trims, collapses inner whitespace and lower-cases a query.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// NormalizeGenres trims, drops empties, deduplicates and sorts genres.
// Case is preserved since genre matching is case-sensitive.
func NormalizeGenres(genres []string) []string {
	seen := make(map[string]struct{}, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
