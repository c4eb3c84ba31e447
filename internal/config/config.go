// Package config provides application configuration management using koanf.
//
// Values are resolved with increasing precedence: hardcoded defaults, an
// optional config.yaml, then FEIRARAG_-prefixed environment variables. The
// embedding and search sections are the runtime-tunable indexing parameters;
// every key has a default so a missing file or variable never fails a lookup.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Qdrant    QdrantConfig    `koanf:"qdrant"`
	LLM       LLMConfig       `koanf:"llm"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Search    SearchConfig    `koanf:"search"`
	Records   RecordsConfig   `koanf:"records"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// QdrantConfig holds the vector database connection settings.
type QdrantConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LLMConfig holds the chat-completion provider settings.
type LLMConfig struct {
	Provider    string  `koanf:"provider"` // "openai" or "groq"
	BaseURL     string  `koanf:"base_url"` // override for OpenAI-compatible endpoints
	Model       string  `koanf:"model"`
	Temperature float64 `koanf:"temperature"`
}

// EmbeddingConfig holds the embedding-generation parameters.
type EmbeddingConfig struct {
	BaseURL    string `koanf:"base_url"` // override for OpenAI-compatible endpoints
	Model      string `koanf:"model"`
	Dimension  int    `koanf:"dimension"`
	RetryCount int    `koanf:"retry_count"`
	RetryDelay int    `koanf:"retry_delay"` // seconds
}

// SearchConfig holds the similarity-search parameters.
type SearchConfig struct {
	Threshold float64 `koanf:"threshold"`
	TopK      int     `koanf:"top_k"`
}

// RecordsConfig points at the knowledge-record source.
type RecordsConfig struct {
	Path string `koanf:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`  // "debug", "info", "warn", "error"
	Format string `koanf:"format"` // "text" or "json"
}

// Load resolves the configuration from defaults, an optional config file
// and environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	setDefaults(k)

	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// FEIRARAG_SEARCH_TOP_K=5 -> search.top_k. Only the first underscore
	// separates section from key; the rest belong to the key itself.
	envOpt := env.Opt{
		Prefix: "FEIRARAG_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "FEIRARAG_"))
			return strings.Replace(key, "_", ".", 1), value
		},
	}
	if err := k.Load(env.Provider(".", envOpt), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"server.host": "0.0.0.0",
		"server.port": 8080,

		"qdrant.host": "localhost",
		"qdrant.port": 6334,

		"llm.provider":    "openai",
		"llm.base_url":    "",
		"llm.model":       "gpt-4o",
		"llm.temperature": 0.3,

		"embedding.base_url":    "",
		"embedding.model":       "text-embedding-ada-002",
		"embedding.dimension":   1536,
		"embedding.retry_count": 3,
		"embedding.retry_delay": 2,

		"search.threshold": 0.4,
		"search.top_k":     3,

		"records.path": "records.json",

		"log.level":  "info",
		"log.format": "text",
	}
	for key, value := range defaults {
		_ = k.Set(key, value)
	}
}

func validate(cfg *Config) error {
	switch cfg.LLM.Provider {
	case "openai", "groq":
	default:
		return fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}
	if cfg.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Embedding.RetryCount < 1 {
		return fmt.Errorf("embedding retry count must be at least 1, got %d", cfg.Embedding.RetryCount)
	}
	if cfg.Search.Threshold < 0 || cfg.Search.Threshold > 1 {
		return fmt.Errorf("search threshold must be in [0,1], got %v", cfg.Search.Threshold)
	}
	if cfg.Search.TopK < 1 {
		return fmt.Errorf("search top_k must be at least 1, got %d", cfg.Search.TopK)
	}
	return nil
}

// Logger builds a slog.Logger from the log settings.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
