package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string
	AppURL      string

	// Database
	DatabaseURL string

	// Redis (optional, used for the admin stats cache)
	RedisURL      string
	StatsCacheTTL time.Duration

	// JWT
	JWTSecret          string
	JWTExpirationHours int

	// Background Workers
	WorkerCount           int
	MatchingSweepInterval time.Duration
	EligibilityNotifyAt   time.Duration // offset from local midnight

	// Matching income rules
	CommissionPercentage decimal.Decimal
	EligibilityMonths    int

	// CORS
	AllowedOrigins []string

	// Email (Resend)
	EnableEmailNotifications bool
	ResendAPIKey             string
	FromEmail                string

	// Sentry
	SentryDSN string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                     getEnv("PORT", "8080"),
		Environment:              getEnv("ENVIRONMENT", "development"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		AppURL:                   getEnv("APP_URL", "http://localhost:5173"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		RedisURL:                 getEnv("REDIS_URL", ""),
		StatsCacheTTL:            getEnvAsDuration("STATS_CACHE_TTL", time.Minute),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		JWTExpirationHours:       getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		WorkerCount:              getEnvAsInt("WORKER_COUNT", 5),
		MatchingSweepInterval:    getEnvAsDuration("MATCHING_SWEEP_INTERVAL", 15*time.Minute),
		EligibilityMonths:        getEnvAsInt("ELIGIBILITY_MONTHS", 3),
		AllowedOrigins:           getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		EnableEmailNotifications: getEnvAsBool("ENABLE_EMAIL_NOTIFICATIONS", true),
		ResendAPIKey:             getEnv("RESEND_API_KEY", ""),
		FromEmail:                getEnv("FROM_EMAIL", "noreply@fintera.app"),
		SentryDSN:                getEnv("SENTRY_DSN", ""),
	}

	pct, err := decimal.NewFromString(getEnv("COMMISSION_PERCENTAGE", "5"))
	if err != nil {
		return nil, fmt.Errorf("COMMISSION_PERCENTAGE is not a number: %w", err)
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("COMMISSION_PERCENTAGE must be between 0 and 100")
	}
	cfg.CommissionPercentage = pct

	notifyAt, err := parseClock(getEnv("ELIGIBILITY_NOTIFY_AT", "02:00"))
	if err != nil {
		return nil, fmt.Errorf("ELIGIBILITY_NOTIFY_AT: %w", err)
	}
	cfg.EligibilityNotifyAt = notifyAt

	// Validate required configuration
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.EligibilityMonths < 0 {
		return nil, fmt.Errorf("ELIGIBILITY_MONTHS cannot be negative")
	}

	if cfg.JWTSecret == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	// Set default JWT secret for development
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	return cfg, nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool reads an environment variable as boolean
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration reads an environment variable as a Go duration ("15m", "1h")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// parseClock reads a 24h "HH:MM" time of day as an offset from midnight
func parseClock(value string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
