package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config carries all runtime settings. It is constructed once in main and
// passed down explicitly; nothing reads the environment after Load.
type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Auth
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	// CORS
	CORSOrigins []string

	// Rate limiting for the unauthenticated auth endpoints
	LoginRateLimit int
}

// defaultJWTSecret matches the development default of the deployed service.
// Validate rejects it unless ALLOW_DEV_SECRET is set, so production
// deployments must provision their own.
const defaultJWTSecret = "smartfinance-secret-key-2024"

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/smartfinance.db"),

		JWTSecret: getEnv("JWT_SECRET", defaultJWTSecret),
		JWTIssuer: getEnv("JWT_ISSUER", "smartfinance"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 30*24*time.Hour),

		CORSOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		LoginRateLimit: getEnvInt("LOGIN_RATE_LIMIT", 20),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate database path
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate auth settings
	if len(c.JWTSecret) < 16 {
		errors = append(errors, fmt.Sprintf("JWT secret too short (%d characters): must be at least 16", len(c.JWTSecret)))
	}
	if c.JWTSecret == defaultJWTSecret && os.Getenv("ALLOW_DEV_SECRET") == "" {
		errors = append(errors, "JWT_SECRET is the development default: set JWT_SECRET or ALLOW_DEV_SECRET=1")
	}
	if c.JWTIssuer == "" {
		errors = append(errors, "JWT issuer cannot be empty")
	}
	if c.TokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	} else if c.TokenTTL > 365*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at most 1 year", c.TokenTTL))
	}

	// Validate rate limit
	if c.LoginRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid login rate limit %d: must be at least 1", c.LoginRateLimit))
	}

	if len(c.CORSOrigins) == 0 {
		errors = append(errors, "CORS origin list cannot be empty (use '*' to allow all)")
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

func splitCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
