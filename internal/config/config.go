// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/api and cmd/notifyctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Table names — single source of truth, matches the goose migrations
// --------------------------------------------------------------------------

const (
	LiveScoresTable    = "live_scores"
	SubscriptionsTable = "subscriptions"
	PreferencesTable   = "notification_preferences"
	StateTable         = "match_notification_state"
	RoundResultsTable  = "round_results"
	RoundMarkersTable  = "round_markers"
	DeliveryLogTable   = "notification_log"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration
	MigrateOnStart bool

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Push provider
	PushAPIURL string
	PushAPIKey string

	// Webhook
	LiveScoreTable string

	// Idempotency tuning. The grace windows are empirically tuned and
	// deliberately configuration rather than constants.
	GoalGraceWindow    time.Duration
	KickoffGraceWindow time.Duration
	ClaimTolerance     time.Duration
	RoundMarkerWindow  time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("SUPABASE_DB_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or SUPABASE_DB_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,
		MigrateOnStart: envBool("MIGRATE_ON_START", true),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 300),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		PushAPIURL: envOr("PUSH_API_URL", "https://push.fiveaside.app"),
		PushAPIKey: envOr("PUSH_API_KEY", ""),

		LiveScoreTable: envOr("LIVE_SCORE_TABLE", LiveScoresTable),

		GoalGraceWindow:    envDuration("GOAL_GRACE_WINDOW", 90*time.Second),
		KickoffGraceWindow: envDuration("KICKOFF_GRACE_WINDOW", 10*time.Minute),
		ClaimTolerance:     envDuration("CLAIM_TOLERANCE", 2*time.Second),
		RoundMarkerWindow:  envDuration("ROUND_MARKER_WINDOW", time.Hour),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
