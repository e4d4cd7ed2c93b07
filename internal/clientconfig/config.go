// Package clientconfig loads the focus client's environment configuration and
// its cached preferences file.
package clientconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"

	"pomodoro/focus/internal/snapshot"
)

const appName = "focus"

const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

type Config struct {
	ServerURL     string        `env:"FOCUS_SERVER_URL"     envDefault:"http://localhost:8080"`
	Token         string        `env:"FOCUS_TOKEN"`
	StateDir      string        `env:"FOCUS_STATE_DIR"`
	Store         string        `env:"FOCUS_STORE"          envDefault:"file"`
	TickInterval  time.Duration `env:"FOCUS_TICK_INTERVAL"  envDefault:"1s"`
	AutoStart     bool          `env:"FOCUS_AUTO_START"     envDefault:"false"`
	ReportRetries uint          `env:"FOCUS_REPORT_RETRIES" envDefault:"3"`
}

// Load reads an optional .env file and the FOCUS_* variables.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if cfg.Store != StoreFile && cfg.Store != StoreSQLite {
		return Config{}, fmt.Errorf("FOCUS_STORE must be %q or %q, got %q", StoreFile, StoreSQLite, cfg.Store)
	}
	if cfg.TickInterval <= 0 {
		return Config{}, errors.New("FOCUS_TICK_INTERVAL must be positive")
	}
	if cfg.StateDir == "" {
		dir, err := defaultDir()
		if err != nil {
			return Config{}, err
		}
		cfg.StateDir = filepath.Join(dir, "state")
	}
	return cfg, nil
}

// UserID reads the subject of the bearer token without verifying it; the
// server does that. It only selects the local snapshot namespace.
func (c Config) UserID() string {
	if c.Token == "" {
		return ""
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, &claims); err != nil {
		return ""
	}
	return claims.Subject
}

// Namespace is the snapshot key for the configured user.
func (c Config) Namespace() string {
	return snapshot.Namespace(c.UserID())
}

func defaultDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, appName), nil
}
