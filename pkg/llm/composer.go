// Package llm composes natural-language answers with a chat model.
//
// Providers speak either the OpenAI chat completions format or the Anthropic
// messages format. A Router supplies an ordered chain of providers; each is
// tried once and the chain moves on only for transport errors and 5xx replies.
// The whole call is bounded by a timeout and guarded by a circuit breaker.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/marquee-ai/marquee/pkg/config"
	"github.com/marquee-ai/marquee/pkg/logging"
	"github.com/marquee-ai/marquee/pkg/metrics"
	"github.com/marquee-ai/marquee/pkg/models"
)

const anthropicVersion = "2023-06-01"

// ErrEmptyAnswer is returned when a provider replies without text.
var ErrEmptyAnswer = errors.New("empty answer")

// Composer turns a prompt into an answer.
type Composer interface {
	Compose(ctx context.Context, prompt string) (string, error)
}

// Client is a Composer backed by HTTP chat endpoints.
type Client struct {
	router    *Router
	model     string
	maxTokens int
	timeout   time.Duration
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[string]
	log       zerolog.Logger
}

// NewClient builds a Client from the composer, providers and router sections of cfg.
func NewClient(cfg *config.Config) *Client {
	cc := cfg.Composer
	timeout := cc.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxFailures := cc.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	log := logging.WithComponent("composer")

	return &Client{
		router:    NewRouter(cfg),
		model:     cc.Model,
		maxTokens: cc.MaxTokens,
		timeout:   timeout,
		http:      &http.Client{},
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:    "composer",
			Timeout: cc.Breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		}),
		log: log,
	}
}

// Compose sends prompt as a single user message along the provider chain.
func (c *Client) Compose(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	answer, err := c.breaker.Execute(func() (string, error) {
		return c.complete(ctx, prompt)
	})
	outcome := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "open"
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.ComposerDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("compose: %w", err)
	}
	return answer, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	routes, err := c.router.Resolve(c.model)
	if err != nil {
		return "", err
	}

	var lastErr error
	for _, route := range routes {
		res, err := c.send(ctx, route, prompt)
		if isRetryable(err, 0) {
			c.log.Warn().Err(err).Str("provider", route.Provider.Name).Msg("upstream failed, trying next")
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if isRetryable(nil, res.statusCode) {
			c.log.Warn().Int("status", res.statusCode).Str("provider", route.Provider.Name).Msg("upstream error status, trying next")
			lastErr = fmt.Errorf("provider %s returned %d", route.Provider.Name, res.statusCode)
			continue
		}
		if res.statusCode != http.StatusOK {
			return "", fmt.Errorf("provider %s returned %d: %s", route.Provider.Name, res.statusCode, truncate(res.body, 256))
		}
		return parseAnswer(route.Provider.Type, res.body)
	}
	return "", fmt.Errorf("all providers failed: %w", lastErr)
}

func (c *Client) send(ctx context.Context, route Route, prompt string) (*upstreamResult, error) {
	messages := []models.ChatMessage{{Role: "user", Content: prompt}}

	if route.Provider.Type == "anthropic" {
		body, err := json.Marshal(models.AnthropicRequest{
			Model:     route.Model,
			Messages:  messages,
			MaxTokens: c.maxTokens,
		})
		if err != nil {
			return nil, err
		}
		headers := map[string]string{
			"x-api-key":         route.Provider.APIKey,
			"anthropic-version": anthropicVersion,
		}
		return c.doUpstreamRequest(ctx, route.Provider.URL, "/v1/messages", headers, body)
	}

	req := models.ChatCompletionRequest{Model: route.Model, Messages: messages}
	if c.maxTokens > 0 {
		req.MaxTokens = &c.maxTokens
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{"Authorization": "Bearer " + route.Provider.APIKey}
	return c.doUpstreamRequest(ctx, route.Provider.URL, "/v1/chat/completions", headers, body)
}

func parseAnswer(providerType string, body []byte) (string, error) {
	var text string
	if providerType == "anthropic" {
		var resp models.AnthropicResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decode anthropic response: %w", err)
		}
		text = resp.Text()
	} else {
		var resp models.ChatCompletionResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decode chat response: %w", err)
		}
		if len(resp.Choices) > 0 {
			text = resp.Choices[0].Message.Content
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}

// upstreamResult holds the response from a single upstream attempt.
type upstreamResult struct {
	statusCode int
	body       []byte
}

func (c *Client) doUpstreamRequest(ctx context.Context, providerURL, path string, headers map[string]string, body []byte) (*upstreamResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(providerURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &upstreamResult{statusCode: resp.StatusCode, body: respBody}, nil
}

// isRetryable reports whether the next provider in the chain should be tried.
func isRetryable(err error, statusCode int) bool {
	if err != nil {
		return true
	}
	return statusCode >= 500
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
