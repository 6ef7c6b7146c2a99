package mcp

import (
	"fmt"
	"strings"

	"github.com/marquee-ai/marquee/pkg/models"
)

// formatResult renders a recommendation as the answer followed by a movie table.
func formatResult(r models.Result, source string) string {
	var b strings.Builder
	b.WriteString(r.Answer)
	b.WriteString("\n\n")
	if len(r.Movies) == 0 {
		fmt.Fprintf(&b, "(no movies, source: %s)\n", source)
		return b.String()
	}
	fmt.Fprintf(&b, "%-40s %6s %-30s %6s\n", "Title", "Year", "Genres", "Score")
	b.WriteString(strings.Repeat("-", 85) + "\n")
	for _, m := range r.Movies {
		year := "N/A"
		if m.Year > 0 {
			year = fmt.Sprintf("%d", m.Year)
		}
		fmt.Fprintf(&b, "%-40s %6s %-30s %6.3f\n",
			clip(m.Title, 40), year, clip(strings.Join(m.Genres, ", "), 30), m.Score)
	}
	fmt.Fprintf(&b, "\nsource: %s\n", source)
	return b.String()
}

// formatSummary formats search summaries as a text table.
func formatSummary(rows []models.SearchSummary) string {
	if len(rows) == 0 {
		return "No searches found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %10s %12s %10s\n", "Source", "Searches", "Avg Latency", "Movies")
	b.WriteString(strings.Repeat("-", 47) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-12s %10d %10.0fms %10d\n",
			r.Source, r.RequestCount, r.AvgLatencyMs, r.TotalMovies)
	}
	return b.String()
}

// formatTopQueries formats query counts as a text table.
func formatTopQueries(rows []models.QueryCount) string {
	if len(rows) == 0 {
		return "No searches found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-50s %8s %-20s\n", "Query", "Count", "Last Seen")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-50s %8d %-20s\n",
			clip(r.Query, 50), r.Count, r.Last.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	return fmt.Sprintf("Cache Statistics\n"+
		"  Backend:  %s\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Backend, stats.Entries, stats.Hits, stats.Misses, stats.HitRate()*100)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
