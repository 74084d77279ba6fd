package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Database
	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	// Auth
	JWTSecret string

	// HTTP
	CORSOrigins []string
	ReadOnly    bool

	CacheTTL time.Duration

	// AMQP events, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	// Load .env file if present
	_ = godotenv.Load()

	return &Config{
		Port:         getEnv("PORT", "8080"),
		DBDriver:     getEnv("DB_DRIVER", "postgres"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SQLitePath:   getEnv("SQLITE_PATH", "./data/expenses.db"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		CORSOrigins:  getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		ReadOnly:     getEnvBool("READ_ONLY", false),
		CacheTTL:     getEnvDuration("CACHE_TTL", time.Minute),
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenses"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
	}
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return c.DatabaseURL
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			problems = append(problems, "SQLITE_PATH cannot be empty when using sqlite")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid db driver '%s': must be postgres or sqlite", c.DBDriver))
	}

	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}

	if c.CacheTTL < 0 {
		problems = append(problems, fmt.Sprintf("invalid cache ttl %v: must not be negative (0 disables caching)", c.CacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
