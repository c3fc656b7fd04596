package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Content  ContentConfig  `yaml:"content"`
	Store    StoreConfig    `yaml:"store"`
	Auth     AuthConfig     `yaml:"auth"`
	CORS     CORSConfig     `yaml:"cors"`
}

type ServerConfig struct {
	Port string `yaml:"port" env:"PORT"`
}

type LogConfig struct {
	Mode  string `yaml:"mode" env:"LOG_MODE"`
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"POSTGRES_URL"`
}

type ContentConfig struct {
	// TTL bounds how long a cached catalog is served before reloading.
	TTL string `yaml:"ttl" env:"CONTENT_TTL"`
	// SeedPath is a YAML content document; empty uses the embedded sample.
	SeedPath string `yaml:"seed_path" env:"CONTENT_SEED_PATH"`
}

type StoreConfig struct {
	Timeout string `yaml:"timeout" env:"STORE_TIMEOUT"`
	// Ledger selects the ledger backend: memory, postgres or redis.
	Ledger          string `yaml:"ledger" env:"STORE_LEDGER"`
	ConflictRetries int    `yaml:"conflict_retries" env:"STORE_CONFLICT_RETRIES"`
	LeaderboardTTL  string `yaml:"leaderboard_ttl" env:"STORE_LEADERBOARD_TTL"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// Load reads YAML config from path, then overlays environment variables.
// A missing file is not an error; env and defaults still apply.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Store.Ledger == "" {
		switch {
		case c.Postgres.URL != "":
			c.Store.Ledger = "postgres"
		default:
			c.Store.Ledger = "memory"
		}
	}
	if c.Store.ConflictRetries <= 0 {
		c.Store.ConflictRetries = 3
	}
}

// Validate rejects backend selections that cannot be satisfied.
func (c Config) Validate() error {
	switch c.Store.Ledger {
	case "memory":
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("store.ledger=postgres requires postgres.url")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("store.ledger=redis requires redis.addr")
		}
	default:
		return fmt.Errorf("store.ledger must be memory, postgres or redis, got %q", c.Store.Ledger)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
