// Package config loads the server configuration from environment variables.
//
// The Config value is built once in main and passed down explicitly; nothing
// else in the tree reads the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store locates the SQLite database. It is all the promoctl CLI needs.
type Store struct {
	DBPath string `env:"DB_PATH" envDefault:"data/secretum.db"`
}

// Config holds every setting the server needs.
type Config struct {
	Store

	Port int `env:"PORT" envDefault:"8080"`

	JWTSecret string        `env:"JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"720h"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	VKClientID         string `env:"VK_CLIENT_ID"`
	VKClientSecret     string `env:"VK_CLIENT_SECRET"`

	// EmailDomain completes the placeholder address given to identities that
	// came back from the provider without an email.
	EmailDomain string `env:"VK_EMAIL_DOMAIN" envDefault:"secretum.casino"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"secretum"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadStore parses only the database settings.
func LoadStore() (Store, error) {
	st, err := env.ParseAs[Store]()
	if err != nil {
		return Store{}, fmt.Errorf("config: parse env: %w", err)
	}
	if strings.TrimSpace(st.DBPath) == "" {
		return Store{}, errors.New("config: DB_PATH must not be empty")
	}
	return st, nil
}

// Validate checks the values env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if strings.TrimSpace(c.EmailDomain) == "" {
		errs = append(errs, errors.New("VK_EMAIL_DOMAIN must not be empty"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q must be text or json", c.LogFormat))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// GoogleEnabled reports whether Google sign-in credentials are present.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// VKEnabled reports whether VK sign-in credentials are present.
func (c Config) VKEnabled() bool {
	return c.VKClientID != "" && c.VKClientSecret != ""
}

// SlogLevel converts LOG_LEVEL to a slog.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}
