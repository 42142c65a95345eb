package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// AdminToken gates the command surface; entering a zone on someone's
	// behalf is an elevated operation.
	AdminToken string `env:"ADMIN_TOKEN"`

	LedgerURL string `env:"LEDGER_URL"`
	WorldURL  string `env:"WORLD_URL"`

	// RedisURL switches session persistence from the snapshot file to Redis.
	RedisURL         string `env:"REDIS_URL"`
	ZoneCatalogPath  string `env:"ZONE_CATALOG_PATH" default:"data/zones.json"`
	SessionStatePath string `env:"SESSION_STATE_PATH" default:"data/sessions.json"`

	SweepInterval time.Duration `env:"SWEEP_INTERVAL" default:"20s"`
	SaveInterval  time.Duration `env:"SAVE_INTERVAL" default:"5m"`

	// AdmitRatePerMinute limits admission attempts per participant on the
	// command surface.
	AdmitRatePerMinute int `env:"ADMIT_RATE_PER_MINUTE" default:"6"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"ADMIN_TOKEN": cfg.AdminToken,
		"LEDGER_URL":  cfg.LedgerURL,
		"WORLD_URL":   cfg.WorldURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if cfg.SaveInterval <= 0 {
		return fmt.Errorf("SAVE_INTERVAL must be positive")
	}
	return nil
}
