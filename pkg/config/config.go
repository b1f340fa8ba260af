package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/datagata/gata/pkg/flags"
)

// Config holds all gata configuration.
type Config struct {
	Listen    string             `yaml:"listen"`
	Log       LogConfig          `yaml:"log"`
	Storage   StorageConfig      `yaml:"storage"`
	Cache     CacheConfig        `yaml:"cache"`
	Metrics   MetricsConfig      `yaml:"metrics"`
	Flags     FlagsConfig        `yaml:"flags"`
	Providers ProvidersConfig    `yaml:"providers"`
	Pricing   map[string]float64 `yaml:"pricing"`
	Router    RouterConfig       `yaml:"router"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// StorageConfig selects the key-value backend.
// Backend is "sqlite" (default), "redis" or "memory".
type StorageConfig struct {
	Backend    string      `yaml:"backend"`
	SQLitePath string      `yaml:"sqlite_path"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig is used when Storage.Backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// CacheConfig controls the query cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Retention time.Duration `yaml:"retention"`
	Threshold float64       `yaml:"threshold"`
	// ReuseOnExecute serves execute-query requests from the cache when a
	// similar prompt was answered before, and caches fresh answers.
	ReuseOnExecute bool `yaml:"reuse_on_execute"`
}

// MetricsConfig controls the outcome aggregator.
type MetricsConfig struct {
	Capacity   int           `yaml:"capacity"`
	Window     time.Duration `yaml:"window"`
	Prometheus bool          `yaml:"prometheus"`
	// ServerURL is where the mcp command reads summaries from. Empty
	// disables its metrics tool.
	ServerURL string `yaml:"server_url"`
}

// FlagsConfig selects where provider configuration comes from.
// Source is "static" (default) or "http".
type FlagsConfig struct {
	Source  string         `yaml:"source"`
	URL     string         `yaml:"url"`
	Token   string         `yaml:"token"`
	Timeout time.Duration  `yaml:"timeout"`
	Default flags.AIConfig `yaml:"default"`
	Rules   []flags.Rule   `yaml:"rules"`
}

// ProvidersConfig holds upstream endpoints. An adapter is only registered
// when its endpoint is usable.
type ProvidersConfig struct {
	MotherDuck MotherDuckConfig `yaml:"motherduck"`
	WebLLM     WebLLMConfig     `yaml:"webllm"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
}

// MotherDuckConfig configures the remote query service.
type MotherDuckConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// WebLLMConfig points at the browser-model proxy.
type WebLLMConfig struct {
	URL string `yaml:"url"`
}

// OpenAIConfig configures an OpenAI-compatible API.
type OpenAIConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// RouterConfig controls provider dispatch.
type RouterConfig struct {
	Timeout  time.Duration   `yaml:"timeout"`
	Fallback *flags.AIConfig `yaml:"fallback"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: "gata.db",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "gata",
			},
		},
		Cache: CacheConfig{
			Enabled:   true,
			Retention: 7 * 24 * time.Hour,
			Threshold: 0.5,
		},
		Metrics: MetricsConfig{
			Capacity:   10000,
			Window:     time.Hour,
			Prometheus: true,
			ServerURL:  "http://localhost:8080",
		},
		Flags: FlagsConfig{
			Source:  "static",
			Timeout: 2 * time.Second,
			Default: flags.DefaultAIConfig(),
		},
		Providers: ProvidersConfig{
			MotherDuck: MotherDuckConfig{URL: "https://api.motherduck.com"},
		},
		Router: RouterConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
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
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend %q: want sqlite, redis or memory", c.Storage.Backend)
	}

	switch c.Flags.Source {
	case "static":
	case "http":
		if c.Flags.URL == "" {
			return fmt.Errorf("flags.url is required for the http source")
		}
	default:
		return fmt.Errorf("flags.source %q: want static or http", c.Flags.Source)
	}

	if c.Cache.Threshold < 0 || c.Cache.Threshold > 1 {
		return fmt.Errorf("cache.threshold %v: must be within [0, 1]", c.Cache.Threshold)
	}
	if c.Metrics.Capacity < 0 {
		return fmt.Errorf("metrics.capacity must not be negative")
	}
	for name, price := range c.Pricing {
		if price < 0 {
			return fmt.Errorf("pricing.%s must not be negative", name)
		}
	}
	return nil
}
