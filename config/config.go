// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	TelegramBotToken string
	AppServerPort    string
	BackendURL       string // public base URL of the HTTP server, used in pairing links
	RedisURL         string // empty runs everything in process
	WCProjectID      string
	WCChainID        int64
	PairingTimeout   time.Duration
	LogLevel         string
	RateLimitRPS     float64
	RateLimitBurst   int
}

// Load reads all configuration from environment variables.
func Load() *Config {
	port := getEnv("APP_SERVER_PORT", "8080")

	return &Config{
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		AppServerPort:    port,
		BackendURL:       getEnv("BACKEND_URL", "http://localhost:"+port),
		RedisURL:         getEnv("REDIS_URL", ""),
		WCProjectID:      getEnv("WC_PROJECT_ID", ""),
		WCChainID:        int64(getEnvInt("WC_CHAIN_ID", 1)),
		PairingTimeout:   getEnvDuration("PAIRING_TIMEOUT", 5*time.Minute),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RateLimitRPS:     getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", 10),
	}
}

// Validate reports settings the process cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.TelegramBotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if c.PairingTimeout <= 0 {
		errs = append(errs, errors.New("PAIRING_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or plain seconds
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
