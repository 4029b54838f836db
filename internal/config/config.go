package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string // postgres; empty selects SQLite
	SQLitePath  string
	RedisURL    string // rate limiting; empty disables the limiter

	// Insight generation (optional)
	InsightAPIKey  string
	InsightBaseURL string
	InsightModel   string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     os.Getenv("SQLITE_PATH"),
		RedisURL:       os.Getenv("REDIS_URL"),
		InsightAPIKey:  os.Getenv("INSIGHT_API_KEY"),
		InsightBaseURL: os.Getenv("INSIGHT_BASE_URL"),
		InsightModel:   getEnv("INSIGHT_MODEL", "gpt-4o-mini"),
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
			}
		}
	}

	// In production, require an explicit database
	if cfg.Env == "production" && cfg.DatabaseURL == "" && cfg.SQLitePath == "" {
		panic("DATABASE_URL or SQLITE_PATH is required in production")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
