package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all process configuration. Values come from the environment,
// optionally seeded from a .env file in the working directory.
type Config struct {
	DatabaseURL    string
	Port           string
	AllowedOrigins string
	JWTSecret      string
	LockTimeout    time.Duration
	RedisURL       string
	CacheTTL       time.Duration
	Embedded       EmbeddedConfig
	CLI            CLIConfig
}

// EmbeddedConfig controls the in-process PostgreSQL used for local development
// when no DATABASE_URL is configured.
type EmbeddedConfig struct {
	Enabled  bool
	Port     uint32
	DataPath string
}

// CLIConfig carries the tenant and actor the stockctl command acts as.
type CLIConfig struct {
	Company string
	Actor   string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg, v := read()
	if cfg.LockTimeout <= 0 {
		return nil, fmt.Errorf("LOCK_TIMEOUT must be a positive duration, got %q", v.GetString("LOCK_TIMEOUT"))
	}
	if cfg.DatabaseURL == "" && !cfg.Embedded.Enabled {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set (or set EMBEDDED_POSTGRES=true)")
	}
	return cfg, nil
}

// LoadForToken reads configuration for signing tokens offline. Only the
// signing secret and the company are required; no database is needed.
func LoadForToken() (*Config, error) {
	cfg, _ := read()
	if cfg.JWTSecret == "" || cfg.CLI.Company == "" {
		return nil, fmt.Errorf("JWT_SECRET and STOCK_COMPANY must be set")
	}
	return cfg, nil
}

func read() (*Config, *viper.Viper) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOCK_TIMEOUT", "2s")
	v.SetDefault("STOCK_CACHE_TTL", "30s")
	v.SetDefault("EMBEDDED_POSTGRES", false)
	v.SetDefault("EMBEDDED_POSTGRES_PORT", 5433)
	v.SetDefault("EMBEDDED_POSTGRES_DATA", "./db_data")
	v.SetDefault("STOCK_ACTOR", "cli")

	return &Config{
		DatabaseURL:    v.GetString("DATABASE_URL"),
		Port:           v.GetString("SERVER_PORT"),
		AllowedOrigins: v.GetString("ALLOWED_ORIGINS"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		LockTimeout:    v.GetDuration("LOCK_TIMEOUT"),
		RedisURL:       v.GetString("REDIS_URL"),
		CacheTTL:       v.GetDuration("STOCK_CACHE_TTL"),
		Embedded: EmbeddedConfig{
			Enabled:  v.GetBool("EMBEDDED_POSTGRES"),
			Port:     v.GetUint32("EMBEDDED_POSTGRES_PORT"),
			DataPath: v.GetString("EMBEDDED_POSTGRES_DATA"),
		},
		CLI: CLIConfig{
			Company: v.GetString("STOCK_COMPANY"),
			Actor:   v.GetString("STOCK_ACTOR"),
		},
	}, v
}
