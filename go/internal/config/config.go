package config

import (
	"fmt"
	"strings"

	"github.com/a1ctf/gamesync/go/internal/game/challenges"
	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

type Config struct {
	BaseURL         string            `env:"A1_BASE_URL,required"`
	GameID          int64             `env:"A1_GAME_ID,required"`
	AuthToken       string            `env:"A1_AUTH_TOKEN"`
	UserID          string            `env:"A1_USER_ID"`
	Username        string            `env:"A1_USERNAME"`
	Role            string            `env:"A1_ROLE" envDefault:"user"`
	ListenAddr      string            `env:"LISTEN_ADDR" envDefault:":8080"`
	NatsURL         string            `env:"NATS_URL"`
	LogLevel        string            `env:"LOG_LEVEL" envDefault:"info"`
	TimingsFile     string            `env:"TIMINGS_FILE"`
	ReconcilePolicy challenges.Policy `env:"RECONCILE_POLICY" envDefault:"monotonic"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.GameID <= 0 {
		return fmt.Errorf("A1_GAME_ID must be positive, got %d", c.GameID)
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("A1_BASE_URL must be an http(s) URL, got %q", c.BaseURL)
	}
	switch c.ReconcilePolicy {
	case challenges.MonotonicMerge, challenges.ServerAuthoritative:
	default:
		return fmt.Errorf("unknown RECONCILE_POLICY %q", c.ReconcilePolicy)
	}
	return nil
}

// Viewer returns the identity the session runs as.
func (c *Config) Viewer() models.Viewer {
	return models.Viewer{
		UserID:   c.UserID,
		Username: c.Username,
		Role:     strings.ToLower(c.Role),
	}
}

// Level returns the configured log level, info when unparsable.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
