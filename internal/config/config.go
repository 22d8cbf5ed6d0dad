// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/aretw0/lectern/internal/logging"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds every setting of the lectern binary. Command-line flags override it.
type Config struct {
	Addr           string        `env:"LECTERN_ADDR" envDefault:":8080"`
	LogLevel       string        `env:"LECTERN_LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LECTERN_LOG_FORMAT" envDefault:"json"`
	CoursesDir     string        `env:"LECTERN_COURSES_DIR" envDefault:"courses"`
	MessagesFile   string        `env:"LECTERN_MESSAGES_FILE"`
	Store          string        `env:"LECTERN_STORE" envDefault:"memory"`
	SQLitePath     string        `env:"LECTERN_SQLITE_PATH" envDefault:"lectern.db"`
	RedisAddr      string        `env:"LECTERN_REDIS_ADDR"`
	RedisPrefix    string        `env:"LECTERN_REDIS_PREFIX" envDefault:"lectern:"`
	LockTTL        time.Duration `env:"LECTERN_LOCK_TTL" envDefault:"5m"`
	LockWait       time.Duration `env:"LECTERN_LOCK_WAIT" envDefault:"1s"`
	MaxHops        int           `env:"LECTERN_MAX_HOPS" envDefault:"16"`
	TypingDelay    time.Duration `env:"LECTERN_TYPING_DELAY" envDefault:"0s"`
	CheckGenerated bool          `env:"LECTERN_CHECK_GENERATED" envDefault:"false"`
	AvatarURL      string        `env:"LECTERN_AVATAR_URL"`
	ShutdownGrace  time.Duration `env:"LECTERN_SHUTDOWN_GRACE" envDefault:"10s"`

	// ModelsFile lists the local commands backing prompt blocks and input screening.
	ModelsFile string `env:"LECTERN_MODELS_FILE"`

	// EncryptionKey, base64 encoded, seals answers and variables at rest when set.
	EncryptionKey            string   `env:"LECTERN_ENCRYPTION_KEY"`
	EncryptionFallbackKeys   []string `env:"LECTERN_ENCRYPTION_FALLBACK_KEYS" envSeparator:","`
	EncryptionAllowPlaintext bool     `env:"LECTERN_ENCRYPTION_ALLOW_PLAINTEXT" envDefault:"false"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that parse but make no sense.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("config: unknown store %q (want %s or %s)", c.Store, StoreMemory, StoreSQLite)
	}
	switch logging.Format(c.LogFormat) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MaxHops < 1 {
		return fmt.Errorf("config: max hops must be positive, got %d", c.MaxHops)
	}
	if c.LockWait <= 0 || c.LockTTL <= 0 {
		return fmt.Errorf("config: lock wait and ttl must be positive")
	}
	return nil
}

// Level returns the parsed log level. Validate guarantees it parses.
func (c Config) Level() slog.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}
