package llm

import (
	"errors"
	"testing"

	"github.com/marquee-ai/marquee/pkg/config"
)

// composerChainConfig mirrors a typical deployment: a "recommender" alias with
// a primary, a duplicate provider entry, a typo and a backup.
func composerChainConfig() *config.Config {
	return &config.Config{
		Providers: []config.ProviderConfig{
			{Name: "openai", URL: "https://api.openai.com", APIKey: "sk-1"},
			{Name: "anthropic", URL: "https://api.anthropic.com", APIKey: "sk-2", Type: "anthropic"},
			{Name: "local", URL: "http://localhost:11434"},
		},
		Router: config.RouterConfig{Routes: []config.RouteConfig{
			{Model: "recommender", Targets: []config.RouteTarget{
				{Provider: "openai", Model: "gpt-4o-mini"},
				{Provider: "openai", Model: "gpt-4o"},
				{Provider: "antropic", Model: "claude-haiku-4-5"},
				{Provider: "anthropic", Model: "claude-haiku-4-5"},
			}},
			{Model: "offline", Targets: []config.RouteTarget{{Provider: "local"}}},
			{Model: "broken", Targets: []config.RouteTarget{{Provider: "missing", Model: "x"}}},
		}},
	}
}

func TestResolveComposerChain(t *testing.T) {
	type hop struct{ provider, model string }
	tests := []struct {
		name  string
		model string
		want  []hop
	}{
		{
			name:  "alias keeps order, one attempt per provider, skips unknown",
			model: "recommender",
			want:  []hop{{"openai", "gpt-4o-mini"}, {"anthropic", "claude-haiku-4-5"}},
		},
		{
			name:  "target without model inherits the requested one",
			model: "offline",
			want:  []hop{{"local", "offline"}},
		},
		{
			name:  "unrouted model goes to the first provider",
			model: "gpt-4.1-nano",
			want:  []hop{{"openai", "gpt-4.1-nano"}},
		},
	}

	r := NewRouter(composerChainConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routes, err := r.Resolve(tt.model)
			if err != nil {
				t.Fatal(err)
			}
			if len(routes) != len(tt.want) {
				t.Fatalf("got %d hops, want %d: %+v", len(routes), len(tt.want), routes)
			}
			for i, w := range tt.want {
				if routes[i].Provider.Name != w.provider || routes[i].Model != w.model {
					t.Errorf("hop %d = %s/%s, want %s/%s",
						i, routes[i].Provider.Name, routes[i].Model, w.provider, w.model)
				}
			}
		})
	}
}

func TestResolveCarriesProviderType(t *testing.T) {
	routes, err := NewRouter(composerChainConfig()).Resolve("recommender")
	if err != nil {
		t.Fatal(err)
	}
	if routes[1].Provider.Type != "anthropic" || routes[1].Provider.APIKey != "sk-2" {
		t.Errorf("provider settings lost: %+v", routes[1].Provider)
	}
}

func TestResolveRouteWithNoKnownProvider(t *testing.T) {
	if _, err := NewRouter(composerChainConfig()).Resolve("broken"); err == nil {
		t.Fatal("expected error when every target names an unknown provider")
	}
}

func TestResolveNoProviders(t *testing.T) {
	_, err := NewRouter(&config.Config{}).Resolve("recommender")
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}
