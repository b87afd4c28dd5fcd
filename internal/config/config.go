// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the binary's configuration.
type Config struct {
	// RemoteURL is the comment API base URL, e.g. https://xyz.supabase.co
	RemoteURL string `env:"TALKTOME_REMOTE_URL"`
	// FeedURL overrides the change feed endpoint derived from RemoteURL
	FeedURL      string `env:"TALKTOME_FEED_URL"`
	FeedCompress bool   `env:"TALKTOME_FEED_COMPRESS"`
	APIKey       string `env:"TALKTOME_API_KEY"`

	// Signed-in user for write commands
	AccessToken string `env:"TALKTOME_ACCESS_TOKEN"`
	UserID      string `env:"TALKTOME_USER_ID"`
	UserEmail   string `env:"TALKTOME_USER_EMAIL"`

	AdminEmails    []string `env:"TALKTOME_ADMIN_EMAILS"    envSeparator:","`
	ModeratorsFile string   `env:"TALKTOME_MODERATORS_FILE"`

	// DBPath is the bbolt file holding the local cache and audit log
	DBPath string `env:"TALKTOME_DB_PATH"`
	// RedisURL switches the comment cache to a shared Redis instance
	RedisURL string `env:"TALKTOME_REDIS_URL"`
	// RedisPrefix namespaces cache keys when several deployments share Redis
	RedisPrefix string `env:"TALKTOME_REDIS_PREFIX"`

	MetricsAddr  string `env:"TALKTOME_METRICS_ADDR"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load parses the environment, fills derived defaults and validates.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DBPath == "" {
		path, err := defaultDBPath()
		if err != nil {
			return Config{}, err
		}
		cfg.DBPath = path
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var problems []error

	if c.RemoteURL == "" {
		problems = append(problems, errors.New("TALKTOME_REMOTE_URL is required"))
	} else if u, err := url.Parse(c.RemoteURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Errorf("TALKTOME_REMOTE_URL must be an http(s) URL, got %q", c.RemoteURL))
	}

	if c.FeedURL != "" {
		if u, err := url.Parse(c.FeedURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			problems = append(problems, fmt.Errorf("TALKTOME_FEED_URL must be a ws(s) URL, got %q", c.FeedURL))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		problems = append(problems, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}

	return errors.Join(problems...)
}

// FeedEndpoint returns the change feed WebSocket URL.
func (c Config) FeedEndpoint() string {
	if c.FeedURL != "" {
		return c.FeedURL
	}
	u, err := url.Parse(c.RemoteURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	u.RawQuery = ""
	return u.String()
}

// TracingEnabled reports whether spans should be exported.
func (c Config) TracingEnabled() bool {
	return c.OTLPEndpoint != ""
}

// defaultDBPath uses the XDG data directory, falling back to ~/.local/share.
func defaultDBPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "talktome", "talktome.db"), nil
}
