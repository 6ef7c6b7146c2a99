package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/marquee-ai/marquee/pkg/config"
	"github.com/marquee-ai/marquee/pkg/models"
)

func TestOpenCacheBackends(t *testing.T) {
	for _, backend := range []string{"sqlite", "memory"} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.DBPath = filepath.Join(t.TempDir(), "marquee.db")
			cfg.Cache.Backend = backend
			ctx := context.Background()

			c, err := openCache(ctx, cfg)
			if err != nil {
				t.Fatal(err)
			}
			defer c.Close()

			if err := c.Put(ctx, "k", models.Result{Answer: "a", Movies: []models.Movie{}}); err != nil {
				t.Fatal(err)
			}
			if _, ok := c.Get(ctx, "k"); !ok {
				t.Error("expected a hit after put")
			}
			stats, err := c.Stats(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if stats.Backend != backend || stats.Entries != 1 {
				t.Errorf("unexpected stats: %+v", stats)
			}
		})
	}
}

func TestOpenVectorStoreDefaultsToDBPath(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "marquee.db")

	vs, err := openVectorStore(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer vs.Close()

	got, err := vs.Search(context.Background(), []float32{1}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected an empty store, got %d movies", len(got))
	}
}
