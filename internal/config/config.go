package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Archive drivers.
const (
	ArchiveNone   = "none"
	ArchiveFile   = "file"
	ArchiveSQLite = "sqlite"
)

type Config struct {
	Port      string `env:"PORT"       envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	SessionQueueSize   int           `env:"SESSION_QUEUE_SIZE"    envDefault:"64"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT"  envDefault:"30m"`
	SessionReapEvery   time.Duration `env:"SESSION_REAP_INTERVAL" envDefault:"1m"`

	ArchiveDriver string `env:"ARCHIVE_DRIVER" envDefault:"none"`
	ArchiveFile   string `env:"ARCHIVE_FILE"   envDefault:"./planning-results.txt"`
	ArchiveDB     string `env:"ARCHIVE_DB"     envDefault:"./planning.db"`

	AdminUser string `env:"ADMIN_USER"`
	AdminPass string `env:"ADMIN_PASS"`

	AllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}

// FromEnv loads configuration from environment variables and validates it.
func FromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	c.ArchiveDriver = strings.ToLower(strings.TrimSpace(c.ArchiveDriver))
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch c.ArchiveDriver {
	case ArchiveNone, ArchiveFile, ArchiveSQLite:
	default:
		return fmt.Errorf("unknown ARCHIVE_DRIVER %q", c.ArchiveDriver)
	}
	if c.SessionQueueSize <= 0 {
		return fmt.Errorf("SESSION_QUEUE_SIZE must be positive, got %d", c.SessionQueueSize)
	}
	if c.SessionIdleTimeout <= 0 || c.SessionReapEvery <= 0 {
		return fmt.Errorf("session timeouts must be positive")
	}
	return nil
}

// AdminEnabled reports whether the admin routes should be mounted.
func (c Config) AdminEnabled() bool {
	return c.AdminUser != "" && c.AdminPass != ""
}
