// Package config provides configuration management for the follow scanner.
// It loads configuration from environment variables and .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Redis     RedisConfig
	Gating    GatingConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// UpstreamConfig holds the social-graph API configuration
type UpstreamConfig struct {
	APIKey            string
	BaseURL           string
	PageSize          int
	Timeout           time.Duration
	RequestsPerSecond float64
}

// RedisConfig holds Redis configuration.
// When Enabled is false the server keeps snapshots in process memory.
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// GatingConfig holds entitlement configuration
type GatingConfig struct {
	FreeVisibleRows int
	PremiumDays     int

	// ActivationSecret, when set, must accompany premium activations
	ActivationSecret string
}

// RateLimitConfig holds inbound rate limits in requests per second
type RateLimitConfig struct {
	FreeTier    int
	PremiumTier int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// ErrMissingAPIKey is returned by Validate when no upstream API key is configured
var ErrMissingAPIKey = errors.New("NEYNAR_API_KEY is required")

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Upstream: UpstreamConfig{
			APIKey:            getEnv("NEYNAR_API_KEY", ""),
			BaseURL:           getEnv("NEYNAR_BASE_URL", "https://api.neynar.com/v2/farcaster"),
			PageSize:          getEnvAsInt("UPSTREAM_PAGE_SIZE", 100),
			Timeout:           getEnvAsDuration("UPSTREAM_TIMEOUT", 30*time.Second),
			RequestsPerSecond: getEnvAsFloat("UPSTREAM_RPS", 5),
		},
		Redis: RedisConfig{
			Enabled:        getEnvAsBool("REDIS_ENABLED", false),
			Host:           getEnv("REDIS_HOST", "localhost"),
			Port:           getEnv("REDIS_PORT", "6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
		},
		Gating: GatingConfig{
			FreeVisibleRows:  getEnvAsInt("GATING_FREE_VISIBLE_ROWS", 30),
			PremiumDays:      getEnvAsInt("GATING_PREMIUM_DAYS", 30),
			ActivationSecret: getEnv("PREMIUM_ACTIVATION_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			FreeTier:    getEnvAsInt("RATE_LIMIT_FREE_TIER", 2),
			PremiumTier: getEnvAsInt("RATE_LIMIT_PREMIUM_TIER", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// Validate checks the settings every binary talking to the upstream needs
func (c *Config) Validate() error {
	if c.Upstream.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Upstream.PageSize <= 0 {
		return fmt.Errorf("UPSTREAM_PAGE_SIZE must be positive, got %d", c.Upstream.PageSize)
	}
	if c.Gating.FreeVisibleRows < 0 {
		return fmt.Errorf("GATING_FREE_VISIBLE_ROWS cannot be negative, got %d", c.Gating.FreeVisibleRows)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

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

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
