package main

import (
	"context"
	"fmt"
	"io"

	"github.com/marquee-ai/marquee/pkg/cache"
	badgerstore "github.com/marquee-ai/marquee/pkg/cache/badger"
	"github.com/marquee-ai/marquee/pkg/cache/memory"
	mongocache "github.com/marquee-ai/marquee/pkg/cache/mongo"
	redisstore "github.com/marquee-ai/marquee/pkg/cache/redis"
	sqlitecache "github.com/marquee-ai/marquee/pkg/cache/sqlite"
	"github.com/marquee-ai/marquee/pkg/config"
	"github.com/marquee-ai/marquee/pkg/embed"
	"github.com/marquee-ai/marquee/pkg/llm"
	"github.com/marquee-ai/marquee/pkg/recommend"
	"github.com/marquee-ai/marquee/pkg/retrieve"
	"github.com/marquee-ai/marquee/pkg/vectorstore"
	mongovec "github.com/marquee-ai/marquee/pkg/vectorstore/mongo"
	"github.com/marquee-ai/marquee/pkg/vectorstore/postgres"
	sqlitevec "github.com/marquee-ai/marquee/pkg/vectorstore/sqlite"
)

// openCache builds the configured cache backend.
func openCache(ctx context.Context, cfg *config.Config) (*cache.Cache, error) {
	c := cfg.Cache
	var (
		store cache.Store
		err   error
	)
	switch c.Backend {
	case "memory":
		store = memory.New(c.Horizon)
	case "redis":
		store, err = redisstore.Dial(ctx, c.Redis.Addr, c.Redis.Password, c.Redis.DB, c.Redis.Prefix, c.Horizon)
	case "badger":
		store, err = badgerstore.Open(c.Badger.Path, c.Badger.InMemory, c.Horizon)
	case "mongo":
		store, err = mongocache.Connect(ctx, c.Mongo.URI, c.Mongo.Database, c.Mongo.Collection, c.Horizon)
	default:
		store, err = sqlitecache.New(cfg.DBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", c.Backend, err)
	}
	return cache.New(store, c.Backend, c.Horizon), nil
}

// openVectorStore connects to the configured embedding store.
func openVectorStore(ctx context.Context, cfg *config.Config) (vectorstore.Store, error) {
	v := cfg.VectorStore
	switch v.Backend {
	case "postgres":
		s, err := postgres.Open(ctx, v.DSN, v.Table)
		if err != nil {
			return nil, fmt.Errorf("open postgres vector store: %w", err)
		}
		return s, nil
	case "mongo":
		s, err := mongovec.Connect(ctx, v.Mongo.URI, v.Mongo.Database, v.Mongo.Collection, v.Mongo.Index)
		if err != nil {
			return nil, fmt.Errorf("open mongo vector store: %w", err)
		}
		return s, nil
	default:
		path := v.DSN
		if path == "" {
			path = cfg.DBPath
		}
		s, err := sqlitevec.New(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite vector store: %w", err)
		}
		return s, nil
	}
}

func newEmbedder(cfg *config.Config) *embed.Client {
	e := cfg.Embedder
	return embed.New(e.URL, e.APIKey, e.Model, e.Timeout)
}

// service bundles the orchestrator with the resources it holds open.
type service struct {
	*recommend.Service
	cache   *cache.Cache
	closers []io.Closer
}

func (s *service) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// buildService wires embedder, retriever, composer and cache into a recommend.Service.
// The cache is left out when disabled in cfg.
func buildService(ctx context.Context, cfg *config.Config) (*service, error) {
	svc := &service{}

	vs, err := openVectorStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, vs)

	var rc recommend.ResultCache
	if cfg.Cache.Enabled {
		c, err := openCache(ctx, cfg)
		if err != nil {
			_ = svc.Close()
			return nil, err
		}
		svc.cache = c
		svc.closers = append(svc.closers, c)
		rc = c
	}

	svc.Service = recommend.New(
		newEmbedder(cfg),
		retrieve.New(vs),
		llm.NewClient(cfg),
		rc,
		cfg.Retrieval.TopK,
	)
	return svc, nil
}
