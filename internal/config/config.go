package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	DatabaseURL    string `env:"DATABASE_URL,required,notEmpty"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	Port           string `env:"PORT" envDefault:"8080"`
	PrometheusPort string `env:"PROMETHEUS_PORT" envDefault:"9090"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"migrations"`

	TokenRotationInterval time.Duration `env:"TOKEN_ROTATION_INTERVAL" envDefault:"5m"`
	TokenSalt             string        `env:"TOKEN_SALT,required,notEmpty"`

	ScoringConcurrency  int    `env:"SCORING_CONCURRENCY" envDefault:"8"`
	RetentionDays       int    `env:"RETENTION_DAYS" envDefault:"90"`
	RulesetCacheSize    int    `env:"RULESET_CACHE_SIZE" envDefault:"64"`
	AnomalySweepEnabled bool   `env:"ANOMALY_SWEEP_ENABLED" envDefault:"true"`
	SchedulerEnabled    bool   `env:"SCHEDULER_ENABLED" envDefault:"true"`
	SchedulerTimezone   string `env:"SCHEDULER_TIMEZONE" envDefault:"UTC"`
}

// Load loads configuration from an optional .env file and the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return Parse()
}

// Parse reads configuration from environment variables only
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.TokenRotationInterval < time.Second {
		return nil, fmt.Errorf("TOKEN_ROTATION_INTERVAL must be at least 1s, got %s", cfg.TokenRotationInterval)
	}
	if cfg.ScoringConcurrency < 1 {
		cfg.ScoringConcurrency = 1
	}
	if cfg.RulesetCacheSize < 1 {
		return nil, fmt.Errorf("RULESET_CACHE_SIZE must be positive, got %d", cfg.RulesetCacheSize)
	}
	if _, err := time.LoadLocation(cfg.SchedulerTimezone); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_TIMEZONE %q: %w", cfg.SchedulerTimezone, err)
	}

	return cfg, nil
}
