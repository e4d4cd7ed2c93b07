package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           string   `env:"PORT"             envDefault:"8080"`
	DBPath         string   `env:"DB_PATH"          envDefault:"./data/focus.db"`
	JWTSecret      string   `env:"JWT_SECRET"       envDefault:"change-this-secret"`
	TokenTTLHours  int      `env:"TOKEN_TTL_HOURS"  envDefault:"72"`
	CORSOrigins    []string `env:"CORS_ORIGINS"     envSeparator:"," envDefault:"http://localhost:5173,http://127.0.0.1:5173"`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS"   envDefault:"5"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"10"`
	// Timezone decides which calendar day a session is counted on.
	Timezone string `env:"STATS_TIMEZONE" envDefault:"Local"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.CORSOrigins = trimList(cfg.CORSOrigins)
	if cfg.TokenTTLHours <= 0 {
		cfg.TokenTTLHours = 72
	}
	return cfg, nil
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// Location resolves Timezone, falling back to UTC for unknown names.
func (c Config) Location() *time.Location {
	location, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return location
}

func trimList(values []string) []string {
	items := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
