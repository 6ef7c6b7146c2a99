// Package ratelimit admits requests per client identity over a sliding window.
package ratelimit

import (
	"errors"
	"sync"
	"time"

	"github.com/marquee-ai/marquee/pkg/metrics"
)

// ErrRateLimited is returned when an identity has used up its window.
var ErrRateLimited = errors.New("rate limit exceeded")

// Defaults match 30 requests per trailing minute.
const (
	DefaultLimit  = 30
	DefaultWindow = time.Minute
)

// Status is the current window for one identity.
type Status struct {
	Identity  string
	Used      int
	Remaining int
}

// Limiter keeps the admission timestamps of every active identity.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	requests  map[string][]time.Time
	lastSweep time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter admitting limit requests per window.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		requests: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Admit records a request for identity, or returns ErrRateLimited when the
// trailing window already holds limit requests. Rejected requests are not recorded.
func (l *Limiter) Admit(identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	l.sweep(now, cutoff)

	recent := prune(l.requests[identity], cutoff)
	if len(recent) >= l.limit {
		l.requests[identity] = recent
		metrics.RateLimited.Inc()
		return ErrRateLimited
	}
	l.requests[identity] = append(recent, now)
	return nil
}

// Status returns how much of the window identity has used.
func (l *Limiter) Status(identity string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	used := len(prune(l.requests[identity], l.now().Add(-l.window)))
	remaining := l.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Status{Identity: identity, Used: used, Remaining: remaining}
}

// Tracked returns the number of identities currently held in memory.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

// sweep drops identities with nothing inside the window, at most once per window.
func (l *Limiter) sweep(now, cutoff time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for id, ts := range l.requests {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(l.requests, id)
		}
	}
}

// prune keeps timestamps strictly newer than cutoff. ts is in ascending order.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
