package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"sheetexpense/internal/storage"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	// MinSessionSecretLength is the minimum accepted SESSION_SECRET length.
	MinSessionSecretLength = 32

	devSessionSecret = "development-session-secret-not-for-production"
)

type Config struct {
	// HTTP Server
	Port    string
	AppEnv  string
	BaseURL string

	// Database (identifier cache and sessions)
	DatabaseURL string

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	// Sessions
	SessionSecret          string
	SessionLifetime        time.Duration
	SessionCleanupInterval time.Duration

	// Workbook backend selection: google or memory
	WorkbookBackend string

	// AMQP (optional; empty URL disables structural events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	ResyncTimeout time.Duration

	RateLimitPerMinute int
	// TrustedProxies are CIDRs whose forwarding headers are believed.
	TrustedProxies []string
	LogLevel       string
}

func Load() *Config {
	appEnv := strings.ToLower(getEnv("APP_ENV", EnvDevelopment))
	secret := getEnv("SESSION_SECRET", "")
	if secret == "" && appEnv != EnvProduction {
		secret = devSessionSecret
	}

	cfg := &Config{
		Port:    getEnv("PORT", "3000"),
		AppEnv:  appEnv,
		BaseURL: getEnv("BASE_URL", ""),

		DatabaseURL: getEnv("DATABASE_URL", "sqlite://./data/sheetexpense.db"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:3000/auth/google/callback"),

		SessionSecret:          secret,
		SessionLifetime:        getEnvDuration("SESSION_LIFETIME", 30*24*time.Hour),
		SessionCleanupInterval: getEnvDuration("SESSION_CLEANUP_INTERVAL", 15*time.Minute),

		WorkbookBackend: strings.ToLower(getEnv("WORKBOOK_BACKEND", "google")),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "sheetexpense"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "summary_resync"),

		ResyncTimeout: getEnvDuration("RESYNC_TIMEOUT", 30*time.Second),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	return cfg
}

// IsProduction reports whether the process runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// OAuthConfigured reports whether the Google OAuth client is set.
func (c *Config) OAuthConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURI != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.AppEnv {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errors = append(errors, fmt.Sprintf("invalid APP_ENV '%s': must be one of [%s %s %s]", c.AppEnv, EnvDevelopment, EnvProduction, EnvTest))
	}

	if c.DatabaseURL == "" {
		errors = append(errors, "DATABASE_URL is required")
	} else if _, _, err := storage.ParseURL(c.DatabaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
	}

	validBackends := []string{"google", "memory"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.WorkbookBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid workbook backend '%s': must be one of %v", c.WorkbookBackend, validBackends))
	}
	if c.IsProduction() && c.WorkbookBackend == "memory" {
		errors = append(errors, "memory workbook backend cannot be used in production")
	}

	if c.WorkbookBackend == "google" || c.IsProduction() {
		if c.GoogleClientID == "" {
			errors = append(errors, "GOOGLE_CLIENT_ID is required")
		}
		if c.GoogleClientSecret == "" {
			errors = append(errors, "GOOGLE_CLIENT_SECRET is required")
		}
		if c.GoogleRedirectURI == "" {
			errors = append(errors, "GOOGLE_REDIRECT_URI is required")
		}
	}
	if c.GoogleRedirectURI != "" {
		if u, err := url.Parse(c.GoogleRedirectURI); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid GOOGLE_REDIRECT_URI '%s': must be an absolute URL", c.GoogleRedirectURI))
		}
	}

	if c.SessionSecret == "" {
		errors = append(errors, "SESSION_SECRET is required")
	} else if len(c.SessionSecret) < MinSessionSecretLength {
		errors = append(errors, fmt.Sprintf("SESSION_SECRET must be at least %d characters", MinSessionSecretLength))
	} else if c.IsProduction() && c.SessionSecret == devSessionSecret {
		errors = append(errors, "SESSION_SECRET must be set explicitly in production")
	}
	if c.SessionLifetime < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session lifetime %v: must be at least 1 minute", c.SessionLifetime))
	}
	if c.SessionCleanupInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid session cleanup interval %v: must not be negative", c.SessionCleanupInterval))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ResyncTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid resync timeout %v: must be at least 1 second", c.ResyncTimeout))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
