package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds console settings read from the environment at startup.
type Config struct {
	// BaseURL is the election API the console talks to.
	BaseURL string `env:"BALLOTDESK_API_URL" envDefault:"http://127.0.0.1:5000"`

	// TokenPath is where the bearer credential is persisted between runs.
	// Empty means ~/.ballotdesk/token.
	TokenPath string `env:"BALLOTDESK_TOKEN_PATH"`

	// RequestTimeout bounds each outgoing API call.
	RequestTimeout time.Duration `env:"BALLOTDESK_REQUEST_TIMEOUT" envDefault:"10s"`

	// Outgoing rate limit (token bucket).
	RatePerSecond int `env:"BALLOTDESK_RATE_LIMIT" envDefault:"20"`
	RateBurst     int `env:"BALLOTDESK_RATE_BURST" envDefault:"40"`

	// MetricsAddr, when set, exposes /metrics on that address.
	MetricsAddr string `env:"BALLOTDESK_METRICS_ADDR"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TokenPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.TokenPath = filepath.Join(home, ".ballotdesk", "token")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 20
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = cfg.RatePerSecond
	}
	return cfg, nil
}
