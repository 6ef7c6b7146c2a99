// Package redis is a cache backend on Redis. Every key is written with an
// EXPIRE matching the time left before the entry leaves the horizon.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/marquee-ai/marquee/pkg/models"
)

// Store keeps cache entries as JSON strings under a key prefix.
type Store struct {
	client  goredis.UniversalClient
	prefix  string
	horizon time.Duration
	now     func() time.Time
	owned   bool
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client goredis.UniversalClient, prefix string, horizon time.Duration) *Store {
	return &Store{client: client, prefix: prefix, horizon: horizon, now: time.Now}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int, prefix string, horizon time.Duration) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	s := New(client, prefix, horizon)
	s.owned = true
	return s, nil
}

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) Load(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("redis get: %w", err)
	}
	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("decode cached entry: %w", err)
	}
	return entry, true, nil
}

// Save writes the entry with an expiry aligned to StoredAt + horizon.
// Entries already past the horizon are not written.
func (s *Store) Save(ctx context.Context, entry models.CacheEntry) error {
	ttl := s.horizon - s.now().Sub(entry.StoredAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if err := s.client.Set(ctx, s.key(entry.Key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Purge is a no-op: Redis drops keys when their EXPIRE passes.
func (s *Store) Purge(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 500).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

// Close closes the client when the Store dialed it.
func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
