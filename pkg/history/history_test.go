package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/marquee-ai/marquee/pkg/models"
)

func newTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	h, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestRecordAndRecent(t *testing.T) {
	h := newTestRecorder(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, q := range []string{"heist movies", "romantic comedies"} {
		err := h.Record(ctx, models.SearchRecord{
			Query: q, Source: "fresh", MovieCount: 5, LatencyMs: 120, Client: "10.0.0.1",
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	recent, err := h.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].Query != "romantic comedies" {
		t.Errorf("expected newest first, got %s", recent[0].Query)
	}
	if recent[0].Client != "10.0.0.1" || recent[0].MovieCount != 5 {
		t.Errorf("unexpected record %+v", recent[0])
	}
}

func TestRecordDefaultsCreatedAt(t *testing.T) {
	h := newTestRecorder(t)
	ctx := context.Background()

	if err := h.Record(ctx, models.SearchRecord{Query: "q", Source: "cache"}); err != nil {
		t.Fatal(err)
	}
	recent, err := h.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(recent[0].CreatedAt) > time.Minute {
		t.Errorf("created_at not defaulted: %v", recent[0].CreatedAt)
	}
}

func TestSummary(t *testing.T) {
	h := newTestRecorder(t)
	ctx := context.Background()
	now := time.Now().UTC()

	records := []models.SearchRecord{
		{Query: "a", Source: "fresh", MovieCount: 5, LatencyMs: 100},
		{Query: "b", Source: "fresh", MovieCount: 3, LatencyMs: 300},
		{Query: "a", Source: "cache", MovieCount: 5, LatencyMs: 2},
		{Query: "c", Source: "no_results", LatencyMs: 50, CreatedAt: now.Add(-48 * time.Hour)},
	}
	for _, r := range records {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if err := h.Record(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	summaries, err := h.Summary(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 sources, got %d: %+v", len(summaries), summaries)
	}
	fresh := summaries[0]
	if fresh.Source != "fresh" || fresh.RequestCount != 2 || fresh.AvgLatencyMs != 200 || fresh.TotalMovies != 8 {
		t.Errorf("unexpected fresh summary %+v", fresh)
	}
	if summaries[1].Source != "cache" || summaries[1].RequestCount != 1 {
		t.Errorf("unexpected cache summary %+v", summaries[1])
	}
}

func TestTopQueries(t *testing.T) {
	h := newTestRecorder(t)
	ctx := context.Background()
	now := time.Now().UTC()

	queries := []string{"Heist movies", "heist movies ", "romantic comedies", "heist movies", "space operas", "romantic comedies", ""}
	for i, q := range queries {
		_ = h.Record(ctx, models.SearchRecord{Query: q, Source: "fresh", CreatedAt: now.Add(time.Duration(i) * time.Second)})
	}

	top, err := h.TopQueries(ctx, now.Add(-time.Minute), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(top))
	}
	if top[0].Query != "heist movies" || top[0].Count != 3 {
		t.Errorf("unexpected top query %+v", top[0])
	}
	if top[1].Query != "romantic comedies" || top[1].Count != 2 {
		t.Errorf("unexpected second query %+v", top[1])
	}
}

func TestCleanup(t *testing.T) {
	h := newTestRecorder(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = h.Record(ctx, models.SearchRecord{Query: "old", Source: "fresh", CreatedAt: now.Add(-40 * 24 * time.Hour)})
	_ = h.Record(ctx, models.SearchRecord{Query: "new", Source: "fresh", CreatedAt: now})

	n, err := h.Cleanup(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}
	recent, _ := h.Recent(ctx, 10)
	if len(recent) != 1 || recent[0].Query != "new" {
		t.Errorf("unexpected remaining records %+v", recent)
	}
}
