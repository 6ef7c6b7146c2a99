package llm

import (
	"errors"
	"fmt"

	"github.com/marquee-ai/marquee/pkg/config"
)

// ErrNoProviders is returned when no composer provider is configured.
var ErrNoProviders = errors.New("no providers configured")

// Route is one provider and model to try when composing an answer.
type Route struct {
	Provider config.ProviderConfig
	Model    string
}

// Router resolves the composer model to an ordered fallback chain.
type Router struct {
	providers []config.ProviderConfig
	routes    []config.RouteConfig
}

// NewRouter builds a Router from the providers and routes in cfg.
func NewRouter(cfg *config.Config) *Router {
	return &Router{providers: cfg.Providers, routes: cfg.Router.Routes}
}

// Resolve returns the chain for model. A configured route yields its targets
// in order, each provider at most once. Otherwise the first provider is used
// with model unchanged.
func (r *Router) Resolve(model string) ([]Route, error) {
	if len(r.providers) == 0 {
		return nil, ErrNoProviders
	}

	byName := make(map[string]config.ProviderConfig, len(r.providers))
	for _, p := range r.providers {
		byName[p.Name] = p
	}

	for _, route := range r.routes {
		if route.Model != model {
			continue
		}
		seen := make(map[string]bool, len(route.Targets))
		var chain []Route
		for _, target := range route.Targets {
			provider, ok := byName[target.Provider]
			if !ok || seen[provider.Name] {
				continue
			}
			seen[provider.Name] = true
			m := target.Model
			if m == "" {
				m = model
			}
			chain = append(chain, Route{Provider: provider, Model: m})
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("route %q: all providers unknown", model)
		}
		return chain, nil
	}

	return []Route{{Provider: r.providers[0], Model: model}}, nil
}
