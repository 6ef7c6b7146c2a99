package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all Marquee configuration.
type Config struct {
	Listen      string            `yaml:"listen" validate:"required"`
	DBPath      string            `yaml:"db_path" validate:"required"`
	Log         LogConfig         `yaml:"log"`
	CORS        CORSConfig        `yaml:"cors"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Cache       CacheConfig       `yaml:"cache"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Providers   []ProviderConfig  `yaml:"providers" validate:"dive"`
	Router      RouterConfig      `yaml:"router"`
	Composer    ComposerConfig    `yaml:"composer"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	History     HistoryConfig     `yaml:"history"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// CORSConfig lists the browser origins allowed to call the API with credentials.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" validate:"dive,required"`
}

// RateLimitConfig controls per-client admission on /search.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"min=1"`
	Window            time.Duration `yaml:"window" validate:"gt=0"`
}

// CacheConfig controls the recommendation cache.
// Backend is one of "sqlite" (default), "memory", "redis", "badger" or "mongo".
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Backend       string        `yaml:"backend" validate:"oneof=sqlite memory redis badger mongo"`
	Horizon       time.Duration `yaml:"horizon" validate:"gt=0"`
	PurgeSchedule string        `yaml:"purge_schedule" validate:"required"`
	Redis         RedisConfig   `yaml:"redis"`
	Badger        BadgerConfig  `yaml:"badger"`
	Mongo         MongoConfig   `yaml:"mongo"`
}

// RedisConfig locates a Redis server.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// BadgerConfig locates a Badger database directory.
type BadgerConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// MongoConfig locates a MongoDB collection. Index is only used for vector search.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	Index      string `yaml:"index"`
}

// VectorStoreConfig selects where movie embeddings live.
// Backend is one of "sqlite" (default), "postgres" or "mongo".
type VectorStoreConfig struct {
	Backend string      `yaml:"backend" validate:"oneof=sqlite postgres mongo"`
	DSN     string      `yaml:"dsn" validate:"required_if=Backend postgres"`
	Table   string      `yaml:"table"`
	Mongo   MongoConfig `yaml:"mongo"`
}

// EmbedderConfig defines the OpenAI-compatible embeddings endpoint.
type EmbedderConfig struct {
	URL     string        `yaml:"url" validate:"required,url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model" validate:"required"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// ProviderConfig defines an upstream LLM provider.
// Type is "openai" (default) or "anthropic".
type ProviderConfig struct {
	Name   string `yaml:"name" validate:"required"`
	URL    string `yaml:"url" validate:"required,url"`
	APIKey string `yaml:"api_key"`
	Type   string `yaml:"type" validate:"omitempty,oneof=openai anthropic"`
}

// RouterConfig defines model routing and fallback chains.
type RouterConfig struct {
	Routes []RouteConfig `yaml:"routes"`
}

// RouteConfig maps a composer model alias to an ordered list of targets.
type RouteConfig struct {
	Model   string        `yaml:"model"`
	Targets []RouteTarget `yaml:"targets"`
}

// RouteTarget identifies a specific provider and model in a fallback chain.
type RouteTarget struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// ComposerConfig controls answer generation.
type ComposerConfig struct {
	Model     string        `yaml:"model" validate:"required"`
	MaxTokens int           `yaml:"max_tokens" validate:"min=1"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`
	Breaker   BreakerConfig `yaml:"breaker"`
}

// BreakerConfig controls the composer circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures" validate:"min=1"`
	OpenTimeout time.Duration `yaml:"open_timeout" validate:"gt=0"`
}

// RetrievalConfig controls the number of movies returned per query.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" validate:"min=1,max=100"`
}

// HistoryConfig controls the search history log.
type HistoryConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Retention       time.Duration `yaml:"retention" validate:"gt=0"`
	CleanupSchedule string        `yaml:"cleanup_schedule" validate:"required"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8000",
		DBPath: "marquee.db",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 30,
			Window:            time.Minute,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Backend:       "sqlite",
			Horizon:       24 * time.Hour,
			PurgeSchedule: "@every 1h",
			Redis:         RedisConfig{Addr: "localhost:6379", Prefix: "marquee:cache:"},
			Badger:        BadgerConfig{Path: "marquee-cache"},
			Mongo:         MongoConfig{Database: "movies", Collection: "query_cache"},
		},
		VectorStore: VectorStoreConfig{
			Backend: "sqlite",
			Table:   "movie_embeddings",
			Mongo:   MongoConfig{Database: "movies", Collection: "movies", Index: "vector_index"},
		},
		Embedder: EmbedderConfig{
			URL:     "https://api.openai.com",
			Model:   "text-embedding-3-small",
			Timeout: 10 * time.Second,
		},
		Composer: ComposerConfig{
			Model:     "gpt-4o-mini",
			MaxTokens: 512,
			Timeout:   30 * time.Second,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				OpenTimeout: 30 * time.Second,
			},
		},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		History: HistoryConfig{
			Enabled:         true,
			Retention:       30 * 24 * time.Hour,
			CleanupSchedule: "@daily",
		},
	}
}

// Load reads a YAML config file, expands environment variables and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
