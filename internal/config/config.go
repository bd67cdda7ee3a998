package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP
	Port     string
	LogLevel string

	// Storage
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// LINE messaging channel
	LineChannelSecret string
	LineChannelToken  string

	// Text generation
	AIBaseURL string
	AIAPIKey  string
	AIModel   string
	AITimeout time.Duration

	// AI co-participation
	ParticipationRate float64
	HistoryLimit      int

	// Scheduled topic broadcast, hours of day in local time
	BroadcastHours []int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvOrDefault("PORT", "8080"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		AIBaseURL:         getEnvOrDefault("AI_BASE_URL", "https://api.openai.com/v1"),
		AIAPIKey:          os.Getenv("AI_API_KEY"),
		AIModel:           getEnvOrDefault("AI_MODEL", "gpt-4o-mini"),
		AITimeout:         30 * time.Second,
		ParticipationRate: 0.3,
		HistoryLimit:      5,
		DBMaxOpenConns:    25,
		DBMaxIdleConns:    5,
	}

	if cfg.DatabaseURL = os.Getenv("DATABASE_URL"); cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.LineChannelSecret = os.Getenv("LINE_CHANNEL_SECRET"); cfg.LineChannelSecret == "" {
		return nil, fmt.Errorf("LINE_CHANNEL_SECRET environment variable is required")
	}
	if cfg.LineChannelToken = os.Getenv("LINE_CHANNEL_TOKEN"); cfg.LineChannelToken == "" {
		return nil, fmt.Errorf("LINE_CHANNEL_TOKEN environment variable is required")
	}

	if raw := os.Getenv("AI_PARTICIPATION_RATE"); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil || rate < 0 || rate > 1 {
			return nil, fmt.Errorf("AI_PARTICIPATION_RATE must be a number between 0 and 1, got %q", raw)
		}
		cfg.ParticipationRate = rate
	}

	maxOpen, err := intEnv("DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns)
	if err != nil {
		return nil, err
	}
	cfg.DBMaxOpenConns = maxOpen

	maxIdle, err := intEnv("DB_MAX_IDLE_CONNS", cfg.DBMaxIdleConns)
	if err != nil {
		return nil, err
	}
	cfg.DBMaxIdleConns = maxIdle

	if raw := os.Getenv("AI_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("AI_TIMEOUT_SECONDS must be a positive integer, got %q", raw)
		}
		cfg.AITimeout = time.Duration(secs) * time.Second
	}

	hours, err := parseHours(getEnvOrDefault("BROADCAST_HOURS", "8,20"))
	if err != nil {
		return nil, err
	}
	cfg.BroadcastHours = hours

	return cfg, nil
}

// parseHours parses a comma-separated list of hours of day, e.g. "8,20".
func parseHours(raw string) ([]int, error) {
	var hours []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.Atoi(part)
		if err != nil || h < 0 || h > 23 {
			return nil, fmt.Errorf("BROADCAST_HOURS must be hours between 0 and 23, got %q", part)
		}
		hours = append(hours, h)
	}
	return hours, nil
}

// intEnv reads a positive integer environment variable, falling back to the
// given default when unset.
func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return v, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
