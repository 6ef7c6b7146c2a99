package models

import "strings"

// Movie is a single retrieved movie with its similarity score.
type Movie struct {
	ID     string   `json:"id" bson:"id"`
	Title  string   `json:"title" bson:"title"`
	Plot   string   `json:"plot" bson:"plot"`
	Year   int      `json:"year" bson:"year"`
	Genres []string `json:"genres" bson:"genres"`
	Score  float64  `json:"score" bson:"score"`
}

// HasAnyGenre reports whether the movie carries at least one of the given genres.
// Matching is exact and case-sensitive.
func (m Movie) HasAnyGenre(genres []string) bool {
	for _, want := range genres {
		for _, g := range m.Genres {
			if g == want {
				return true
			}
		}
	}
	return false
}

// Result is the answer returned for a recommendation query.
type Result struct {
	Answer string  `json:"answer" bson:"answer"`
	Movies []Movie `json:"movies" bson:"movies"`
}

// SortMode selects the order of retrieved movies.
type SortMode string

const (
	SortRelevance SortMode = "relevance"
	SortYearDesc  SortMode = "year_desc"
	SortYearAsc   SortMode = "year_asc"
	SortTitleAsc  SortMode = "title_asc"
	SortTitleDesc SortMode = "title_desc"
)

// ParseSortMode maps a request value to a SortMode. Unknown and empty values
// fall back to relevance.
func ParseSortMode(s string) SortMode {
	switch mode := SortMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case SortYearDesc, SortYearAsc, SortTitleAsc, SortTitleDesc:
		return mode
	default:
		return SortRelevance
	}
}

// Filter narrows and orders retrieved movies.
// The year range only applies when both bounds are set.
type Filter struct {
	YearStart *int     `json:"year_start,omitempty"`
	YearEnd   *int     `json:"year_end,omitempty"`
	Genres    []string `json:"genres,omitempty"`
	SortBy    SortMode `json:"sort_by,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

// HasYearRange reports whether both year bounds are present.
func (f Filter) HasYearRange() bool {
	return f.YearStart != nil && f.YearEnd != nil
}

// Document is a movie prepared for a vector store, with its embedding.
type Document struct {
	Movie     Movie
	Embedding []float32
}

// EmbeddingText returns the text a movie is embedded from.
func (m Movie) EmbeddingText() string {
	return strings.TrimSpace(m.Title + " " + m.Plot + " " + strings.Join(m.Genres, " "))
}
