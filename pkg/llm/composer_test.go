package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/marquee-ai/marquee/pkg/config"
	"github.com/marquee-ai/marquee/pkg/models"
)

func openAIUpstream(t *testing.T, answer string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req models.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.ChatCompletionResponse{
			Model:   req.Model,
			Choices: []models.Choice{{Message: models.ChatMessage{Role: "assistant", Content: answer}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func statusUpstream(t *testing.T, status int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.WriteHeader(status)
		w.Write([]byte(`{"error":"upstream"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(providers ...config.ProviderConfig) *config.Config {
	cfg := config.Default()
	cfg.Providers = providers
	cfg.Composer.Model = "composer"
	cfg.Composer.Timeout = 2 * time.Second
	var targets []config.RouteTarget
	for _, p := range providers {
		targets = append(targets, config.RouteTarget{Provider: p.Name, Model: p.Name + "-model"})
	}
	cfg.Router.Routes = []config.RouteConfig{{Model: "composer", Targets: targets}}
	return cfg
}

func TestComposeOpenAI(t *testing.T) {
	up := openAIUpstream(t, "  Try Notting Hill.  ", nil)
	c := NewClient(testConfig(config.ProviderConfig{Name: "openai", URL: up.URL, APIKey: "sk-1"}))

	got, err := c.Compose(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Try Notting Hill." {
		t.Errorf("answer = %q", got)
	}
}

func TestComposeAnthropic(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-ant" || r.Header.Get("anthropic-version") == "" {
			t.Error("missing anthropic headers")
		}
		var req models.AnthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		if req.Model != "anthropic-model" || req.MaxTokens != 512 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"type":"message","content":[{"type":"text","text":"Watch "},{"type":"text","text":"Amelie."}]}`))
	}))
	defer up.Close()

	c := NewClient(testConfig(config.ProviderConfig{Name: "anthropic", URL: up.URL, APIKey: "sk-ant", Type: "anthropic"}))
	got, err := c.Compose(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Watch Amelie." {
		t.Errorf("answer = %q", got)
	}
}

func TestComposeFallsBackOn5xx(t *testing.T) {
	var primary, secondary atomic.Int32
	bad := statusUpstream(t, http.StatusBadGateway, &primary)
	good := openAIUpstream(t, "fallback answer", &secondary)

	c := NewClient(testConfig(
		config.ProviderConfig{Name: "primary", URL: bad.URL},
		config.ProviderConfig{Name: "secondary", URL: good.URL},
	))
	got, err := c.Compose(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "fallback answer" {
		t.Errorf("answer = %q", got)
	}
	if primary.Load() != 1 || secondary.Load() != 1 {
		t.Errorf("expected one attempt each, got %d and %d", primary.Load(), secondary.Load())
	}
}

func TestComposeDoesNotFallBackOn4xx(t *testing.T) {
	var secondary atomic.Int32
	bad := statusUpstream(t, http.StatusBadRequest, nil)
	good := openAIUpstream(t, "unused", &secondary)

	c := NewClient(testConfig(
		config.ProviderConfig{Name: "primary", URL: bad.URL},
		config.ProviderConfig{Name: "secondary", URL: good.URL},
	))
	if _, err := c.Compose(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error")
	}
	if secondary.Load() != 0 {
		t.Error("4xx should not fall through to the next provider")
	}
}

func TestComposeAllFail(t *testing.T) {
	bad := statusUpstream(t, http.StatusInternalServerError, nil)
	c := NewClient(testConfig(config.ProviderConfig{Name: "primary", URL: bad.URL}))

	_, err := c.Compose(context.Background(), "prompt")
	if err == nil || !strings.Contains(err.Error(), "all providers failed") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestComposeEmptyAnswer(t *testing.T) {
	up := openAIUpstream(t, "   ", nil)
	c := NewClient(testConfig(config.ProviderConfig{Name: "openai", URL: up.URL}))

	_, err := c.Compose(context.Background(), "prompt")
	if !errors.Is(err, ErrEmptyAnswer) {
		t.Fatalf("expected ErrEmptyAnswer, got %v", err)
	}
}

func TestComposeTimeout(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	cfg := testConfig(config.ProviderConfig{Name: "slow", URL: slow.URL})
	cfg.Composer.Timeout = 50 * time.Millisecond
	c := NewClient(cfg)

	start := time.Now()
	_, err := c.Compose(context.Background(), "prompt")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("timeout not enforced, took %v", time.Since(start))
	}
}

func TestComposeBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	bad := statusUpstream(t, http.StatusServiceUnavailable, &calls)

	cfg := testConfig(config.ProviderConfig{Name: "primary", URL: bad.URL})
	cfg.Composer.Breaker.MaxFailures = 2
	cfg.Composer.Breaker.OpenTimeout = time.Minute
	c := NewClient(cfg)

	for range 2 {
		_, _ = c.Compose(context.Background(), "prompt")
	}
	_, err := c.Compose(context.Background(), "prompt")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 upstream calls, got %d", calls.Load())
	}
}

func TestComposeNoProviders(t *testing.T) {
	c := NewClient(testConfig())
	_, err := c.Compose(context.Background(), "prompt")
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}
