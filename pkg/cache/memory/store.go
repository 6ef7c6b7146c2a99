// Package memory is a process-local cache backend. Entries expire from the
// underlying LRU once the horizon passes; size is unbounded.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/marquee-ai/marquee/pkg/models"
)

// Store keeps entries in an expirable LRU with no size limit.
type Store struct {
	lru *expirable.LRU[string, models.CacheEntry]
}

// New creates a Store whose entries are dropped ttl after insertion.
func New(ttl time.Duration) *Store {
	// size 0 disables size-based eviction.
	return &Store{lru: expirable.NewLRU[string, models.CacheEntry](0, nil, ttl)}
}

// Load returns a copy of the stored entry; callers may modify it freely.
func (s *Store) Load(_ context.Context, key string) (models.CacheEntry, bool, error) {
	e, ok := s.lru.Peek(key)
	if !ok {
		return models.CacheEntry{}, false, nil
	}
	return clone(e), true, nil
}

func (s *Store) Save(_ context.Context, entry models.CacheEntry) error {
	s.lru.Add(entry.Key, clone(entry))
	return nil
}

// Purge removes entries stored before cutoff that the LRU has not expired yet.
func (s *Store) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for _, key := range s.lru.Keys() {
		e, ok := s.lru.Peek(key)
		if ok && e.StoredAt.Before(cutoff) && s.lru.Remove(key) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Count(_ context.Context) (int64, error) {
	return int64(s.lru.Len()), nil
}

func (s *Store) Clear(_ context.Context) error {
	s.lru.Purge()
	return nil
}

func (s *Store) Close() error { return nil }

// clone copies the movie and genre slices so the LRU never shares memory with callers.
func clone(e models.CacheEntry) models.CacheEntry {
	if e.Result.Movies == nil {
		return e
	}
	movies := make([]models.Movie, len(e.Result.Movies))
	for i, m := range e.Result.Movies {
		if m.Genres != nil {
			m.Genres = append([]string(nil), m.Genres...)
		}
		movies[i] = m
	}
	e.Result.Movies = movies
	return e
}
