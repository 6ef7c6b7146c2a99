package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":8000" {
		t.Errorf("expected :8000, got %s", cfg.Listen)
	}
	if cfg.Cache.Horizon != 24*time.Hour {
		t.Errorf("expected 24h horizon, got %v", cfg.Cache.Horizon)
	}
	if cfg.RateLimit.RequestsPerMinute != 30 {
		t.Errorf("expected 30 requests per minute, got %d", cfg.RateLimit.RequestsPerMinute)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("expected top_k 5, got %d", cfg.Retrieval.TopK)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("unexpected CORS origins: %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.History.CleanupSchedule != "@daily" || cfg.History.CleanupSchedule == cfg.Cache.PurgeSchedule {
		t.Errorf("unexpected history cleanup schedule: %q", cfg.History.CleanupSchedule)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-123")

	path := writeConfig(t, `
listen: ":9090"
db_path: "test.db"
providers:
  - name: openai
    url: https://api.openai.com
    api_key: ${TEST_API_KEY}
cache:
  backend: redis
  horizon: 30m
  redis:
    addr: "cache:6379"
rate_limit:
  requests_per_minute: 10
retrieval:
  top_k: 8
history:
  cleanup_schedule: "0 3 * * *"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Listen)
	}
	if cfg.Providers[0].APIKey != "sk-test-123" {
		t.Errorf("env var not expanded: got %s", cfg.Providers[0].APIKey)
	}
	if cfg.Cache.Backend != "redis" {
		t.Errorf("expected redis backend, got %s", cfg.Cache.Backend)
	}
	if cfg.Cache.Horizon != 30*time.Minute {
		t.Errorf("expected 30m horizon, got %v", cfg.Cache.Horizon)
	}
	if cfg.Cache.Redis.Addr != "cache:6379" {
		t.Errorf("expected cache:6379, got %s", cfg.Cache.Redis.Addr)
	}
	// Unset nested fields keep their defaults.
	if cfg.Cache.Redis.Prefix != "marquee:cache:" {
		t.Errorf("expected default prefix, got %s", cfg.Cache.Redis.Prefix)
	}
	if cfg.RateLimit.RequestsPerMinute != 10 {
		t.Errorf("expected 10, got %d", cfg.RateLimit.RequestsPerMinute)
	}
	if cfg.Retrieval.TopK != 8 {
		t.Errorf("expected top_k 8, got %d", cfg.Retrieval.TopK)
	}
	if cfg.History.CleanupSchedule != "0 3 * * *" {
		t.Errorf("expected history cleanup schedule, got %q", cfg.History.CleanupSchedule)
	}
	if cfg.Cache.PurgeSchedule != "@every 1h" {
		t.Errorf("cache purge schedule changed: %q", cfg.Cache.PurgeSchedule)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOrDefaultMissing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "marquee.db" {
		t.Errorf("expected default db path, got %s", cfg.DBPath)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"unknown cache backend", "cache:\n  backend: memcached\n", "Backend"},
		{"top_k above pool", "retrieval:\n  top_k: 500\n", "TopK"},
		{"zero rate limit", "rate_limit:\n  requests_per_minute: 0\n", "RequestsPerMinute"},
		{"postgres without dsn", "vector_store:\n  backend: postgres\n", "DSN"},
		{"provider without url", "providers:\n  - name: broken\n", "URL"},
		{"empty cleanup schedule", "history:\n  cleanup_schedule: \"\"\n", "CleanupSchedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", err, tt.field)
			}
		})
	}
}
