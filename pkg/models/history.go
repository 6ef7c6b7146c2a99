package models

import "time"

// SearchRecord is one served search request.
type SearchRecord struct {
	ID         int64     `json:"id"`
	Query      string    `json:"query"`
	CacheKey   string    `json:"cache_key,omitempty"`
	Source     string    `json:"source"`
	MovieCount int       `json:"movie_count"`
	LatencyMs  int64     `json:"latency_ms"`
	Client     string    `json:"client,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SearchSummary aggregates searches by result source.
type SearchSummary struct {
	Source       string  `json:"source"`
	RequestCount int     `json:"request_count"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	TotalMovies  int     `json:"total_movies"`
}

// QueryCount is how often a query was searched.
type QueryCount struct {
	Query string    `json:"query"`
	Count int       `json:"count"`
	Last  time.Time `json:"last"`
}
