// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // async | sync | stream
	// Fixed-counter rate limit per client IP; disabled when Requests <= 0.
	RateLimit struct {
		Requests int           `yaml:"requests"`
		Window   time.Duration `yaml:"window"`
	} `yaml:"rate_limit"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type StoreConfig struct {
	Backend string        `yaml:"backend"` // redis | memory
	TTL     time.Duration `yaml:"ttl"`     // per-record expiry window
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // deepseek | openai | noop
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	SystemPrompt    string        `yaml:"system_prompt"`
	MaxTokens       int           `yaml:"max_tokens"`
	Temperature     float64       `yaml:"temperature"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`  // transport-level timeout
	ProcessDeadline time.Duration `yaml:"process_deadline"` // internal deadline, must fire first
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
	MaxMessageChars int           `yaml:"max_message_chars"`
}

type WorkerConfig struct {
	Count int `yaml:"count"`
}

type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
	Redis  RedisConfig  `yaml:"redis"`
	AI     AIConfig     `yaml:"ai"`
	Worker WorkerConfig `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "async"
	}
	if cfg.Server.RateLimit.Window <= 0 {
		cfg.Server.RateLimit.Window = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Store.Backend == "" {
		if cfg.Redis.URL != "" {
			cfg.Store.Backend = "redis"
		} else {
			cfg.Store.Backend = "memory"
		}
	}
	if cfg.Store.TTL <= 0 {
		cfg.Store.TTL = 15 * time.Minute
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "deepseek"
	}
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = os.Getenv("AI_API_KEY")
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "deepseek-chat"
	}
	if cfg.AI.SystemPrompt == "" {
		cfg.AI.SystemPrompt = "You are a helpful assistant. Respond concisely, in under 25 words."
	}
	if cfg.AI.MaxTokens <= 0 {
		cfg.AI.MaxTokens = 50
	}
	if cfg.AI.Temperature <= 0 {
		cfg.AI.Temperature = 0.5
	}
	if cfg.AI.RequestTimeout <= 0 {
		cfg.AI.RequestTimeout = 20 * time.Second
	}
	if cfg.AI.ProcessDeadline <= 0 {
		cfg.AI.ProcessDeadline = 10500 * time.Millisecond
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.MaxMessageChars <= 0 {
		cfg.AI.MaxMessageChars = 200
	}
	if cfg.Worker.Count <= 0 {
		cfg.Worker.Count = 8
	}

	// Minimal validation
	switch cfg.Server.Mode {
	case "async", "sync", "stream":
	default:
		return nil, fmt.Errorf("server.mode must be async, sync or stream, got %q", cfg.Server.Mode)
	}
	switch cfg.Store.Backend {
	case "redis", "memory":
	default:
		return nil, fmt.Errorf("store.backend must be redis or memory, got %q", cfg.Store.Backend)
	}
	if cfg.Store.Backend == "redis" && cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required when store.backend is redis")
	}
	if cfg.AI.Provider != "noop" && cfg.AI.APIKey == "" {
		return nil, errors.New("ai.api_key (or AI_API_KEY) is required")
	}
	// The internal deadline must fire before the transport timeout, so a hung
	// upstream call always yields a deterministic error record.
	if cfg.AI.ProcessDeadline >= cfg.AI.RequestTimeout {
		return nil, fmt.Errorf("ai.process_deadline (%s) must be shorter than ai.request_timeout (%s)",
			cfg.AI.ProcessDeadline, cfg.AI.RequestTimeout)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
