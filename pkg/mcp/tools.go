package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/marquee-ai/marquee/pkg/models"
)

// Tool argument structs.

type searchArgs struct {
	Query     string   `json:"query"`
	YearStart *int     `json:"year_start"`
	YearEnd   *int     `json:"year_end"`
	Genres    []string `json:"genres"`
	SortBy    string   `json:"sort_by"`
	Limit     int      `json:"limit"`
}

type sinceArgs struct {
	Since string `json:"since"`
	Limit int    `json:"limit"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"marquee_search":       handleSearch,
	"marquee_cache_stats":  handleCacheStats,
	"marquee_search_stats": handleSearchStats,
	"marquee_top_queries":  handleTopQueries,
}

var sinceProperty = map[string]any{
	"type":        "string",
	"description": "Start date in YYYY-MM-DD format (optional, defaults to the last 7 days)",
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "marquee_search",
		Description: "Recommend movies for a natural-language query, with optional year, genre and sort filters.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"query"},
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What kind of movie to look for",
				},
				"year_start": map[string]any{
					"type":        "integer",
					"description": "Earliest release year (applies only together with year_end)",
				},
				"year_end": map[string]any{
					"type":        "integer",
					"description": "Latest release year (applies only together with year_start)",
				},
				"genres": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Keep movies matching any of these genres",
				},
				"sort_by": map[string]any{
					"type":        "string",
					"enum":        []string{"relevance", "year_desc", "year_asc", "title_asc", "title_desc"},
					"description": "Result order (default relevance)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of movies to return",
				},
			},
		},
	},
	{
		Name:        "marquee_cache_stats",
		Description: "Show recommendation cache statistics (backend, entries, hits, misses, hit rate).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "marquee_search_stats",
		Description: "Show served searches grouped by how the result was produced.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"since": sinceProperty,
			},
		},
	},
	{
		Name:        "marquee_top_queries",
		Description: "Show the most frequent search queries.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"since": sinceProperty,
				"limit": map[string]any{
					"type":        "integer",
					"description": "Number of queries to show (default 10)",
				},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleSearch(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.rec == nil {
		return textResult("Search is not configured.")
	}
	var args searchArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}
	if strings.TrimSpace(args.Query) == "" {
		return errorResult("query is required")
	}

	f := models.Filter{
		YearStart: args.YearStart,
		YearEnd:   args.YearEnd,
		Genres:    args.Genres,
		SortBy:    models.ParseSortMode(args.SortBy),
		Limit:     args.Limit,
	}
	result, outcome := s.rec.Recommend(ctx, args.Query, f)
	return textResult(formatResult(result, string(outcome.Source)))
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

func handleSearchStats(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.history == nil {
		return textResult("Search history is not configured.")
	}
	_, since, errRes := parseSince(rawArgs)
	if errRes != nil {
		return *errRes
	}
	rows, err := s.history.Summary(ctx, since)
	if err != nil {
		return errorResult("Error fetching search stats: " + err.Error())
	}
	return textResult(formatSummary(rows))
}

func handleTopQueries(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.history == nil {
		return textResult("Search history is not configured.")
	}
	args, since, errRes := parseSince(rawArgs)
	if errRes != nil {
		return *errRes
	}
	n := args.Limit
	if n <= 0 {
		n = 10
	}
	rows, err := s.history.TopQueries(ctx, since, n)
	if err != nil {
		return errorResult("Error fetching top queries: " + err.Error())
	}
	return textResult(formatTopQueries(rows))
}

func parseSince(rawArgs json.RawMessage) (sinceArgs, time.Time, *ToolCallResult) {
	var args sinceArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	since := time.Now().UTC().AddDate(0, 0, -7)
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			res := errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
			return args, time.Time{}, &res
		}
		since = t
	}
	return args, since, nil
}
