package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	// Environment
	Environment string
	Port        string
	CORSOrigin  string // Access-Control-Allow-Origin for browser players

	// Storage
	DatabaseURL string // Postgres DSN; empty keeps analyses in memory

	// Observability
	SentryDSN string // Sentry DSN for error tracking

	// Auth mode
	// - "none": No auth (self-hosted, local dev)
	// - "gateway": Trust X-User-* headers from the gateway
	// - "jwt": Require a bearer token signed with JWTSecret
	AuthMode  string
	JWTSecret string

	// Grid defaults applied when the analysis backend omits tempo metadata
	DefaultBPM           float64
	DefaultTimeSignature int

	// Playback sessions
	SessionTTL   time.Duration // idle sessions are dropped after this long
	PollInterval time.Duration // suggested client tick interval
}

func Load() *Config {
	return &Config{
		Environment:          getEnv("ENVIRONMENT", "development"),
		Port:                 getEnv("PORT", "8080"),
		CORSOrigin:           getEnv("CORS_ALLOW_ORIGIN", "*"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		SentryDSN:            getEnv("SENTRY_DSN", ""),
		AuthMode:             getEnv("AUTH_MODE", "none"), // Default to no auth for self-hosted
		JWTSecret:            getEnv("JWT_SECRET", ""),
		DefaultBPM:           getEnvFloat("DEFAULT_BPM", 120),
		DefaultTimeSignature: getEnvInt("DEFAULT_TIME_SIGNATURE", 4),
		SessionTTL:           getEnvDuration("SESSION_TTL", 30*time.Minute),
		PollInterval:         getEnvDuration("POLL_INTERVAL", 50*time.Millisecond),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

// IsGatewayMode returns true if running behind the gateway
func (c *Config) IsGatewayMode() bool {
	return c.AuthMode == "gateway"
}

// IsJWTMode returns true if bearer tokens are required
func (c *Config) IsJWTMode() bool {
	return c.AuthMode == "jwt"
}

// UsesDatabase returns true if analyses are persisted in Postgres
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}
