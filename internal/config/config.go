package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort          = 8080
	DefaultAcceleration      = 1000.0
	DefaultBreakingTTL       = 24 * time.Hour
	DefaultCleanupInterval   = time.Minute
	DefaultBroadcastInterval = 5 * time.Second
	DefaultRedisURLEnv       = "REDIS_URL"
)

// Config is the flashwire-server configuration parsed from config.yaml.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Feed    FeedConfig    `yaml:"feed"`
	Replay  ReplayConfig  `yaml:"replay"`
	Store   StoreConfig   `yaml:"store"`
	Cleanup CleanupConfig `yaml:"cleanup"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// BroadcastInterval is how often the WebSocket hub pushes the breaking
	// snapshot to connected clients. Default: 5s.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// Auth configures API key protection for the mutating endpoints.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig controls authentication on the replay-control and admin routes.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable holding the expected
	// API key. Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header the key is read from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// FeedConfig selects and locates the article source.
type FeedConfig struct {
	// Source is one of: csv | rss.
	Source string `yaml:"source"`

	// Path is the CSV dataset location. Used when Source == "csv".
	Path string `yaml:"path"`

	// URL is the RSS/Atom feed address. Used when Source == "rss".
	URL string `yaml:"url"`
}

// ReplayConfig controls the replay pacing.
type ReplayConfig struct {
	// Acceleration divides the feed's real inter-arrival gaps. Default: 1000.
	// This knob is hot-reloadable via the config watcher.
	Acceleration float64 `yaml:"acceleration"`

	// AutoStart launches the replay on process start. Default: true.
	AutoStart *bool `yaml:"auto_start"`
}

// AutoStartEnabled reports the AutoStart setting, defaulting to true.
func (r ReplayConfig) AutoStartEnabled() bool {
	return r.AutoStart == nil || *r.AutoStart
}

// StoreConfig selects the state backend.
type StoreConfig struct {
	// Backend is one of: memory | redis.
	Backend string `yaml:"backend"`

	// RedisURLEnv is the environment variable holding the Redis URL.
	// Default: REDIS_URL. Used when Backend == "redis".
	RedisURLEnv string `yaml:"redis_url_env"`

	// BreakingTTL is how long a breaking-news entry survives before TTL
	// cleanup evicts it. Default: 24h.
	BreakingTTL time.Duration `yaml:"breaking_ttl"`
}

// RedisURL returns the Redis URL resolved from the environment.
func (s StoreConfig) RedisURL() string {
	return os.Getenv(s.RedisURLEnv)
}

// CleanupConfig controls the background janitor.
type CleanupConfig struct {
	// Interval between cleanup passes. Default: 1m.
	Interval time.Duration `yaml:"interval"`
}

// NotifyConfig lists webhook targets announced on every breaking detection.
// An empty list disables notifications.
type NotifyConfig struct {
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			BroadcastInterval: DefaultBroadcastInterval,
		},
		Feed: FeedConfig{
			Source: "csv",
			Path:   "bbc_news.csv",
		},
		Replay: ReplayConfig{
			Acceleration: DefaultAcceleration,
		},
		Store: StoreConfig{
			Backend:     "memory",
			RedisURLEnv: DefaultRedisURLEnv,
			BreakingTTL: DefaultBreakingTTL,
		},
		Cleanup: CleanupConfig{
			Interval: DefaultCleanupInterval,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	switch cfg.Feed.Source {
	case "csv":
		if cfg.Feed.Path == "" {
			return fmt.Errorf("feed.path is required for the csv source")
		}
	case "rss":
		if cfg.Feed.URL == "" {
			return fmt.Errorf("feed.url is required for the rss source")
		}
	default:
		return fmt.Errorf("feed.source %q unknown: want csv|rss", cfg.Feed.Source)
	}
	if cfg.Replay.Acceleration <= 0 {
		return fmt.Errorf("replay.acceleration must be positive, got %g", cfg.Replay.Acceleration)
	}
	switch cfg.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("store.backend %q unknown: want memory|redis", cfg.Store.Backend)
	}
	if cfg.Store.BreakingTTL < 0 {
		return fmt.Errorf("store.breaking_ttl must not be negative")
	}
	if cfg.Cleanup.Interval < 0 {
		return fmt.Errorf("cleanup.interval must not be negative")
	}
	for i, wh := range cfg.Notify.Webhooks {
		switch wh.Type {
		case "slack", "http":
		default:
			return fmt.Errorf("notify.webhooks[%d].type %q unknown: want slack|http", i, wh.Type)
		}
		if wh.URLEnv == "" {
			return fmt.Errorf("notify.webhooks[%d].url_env is required", i)
		}
	}
	return nil
}
