package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Backend selection
	DataBackend string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Fiscal calendar. TimeZone is the single zone every calendar-component
	// extraction runs in; it is deployment configuration, never the zone of
	// the host the process happens to run on.
	TimeZone             string
	FiscalYearStartMonth int

	// Dues billing
	DuesMonthlyCents int64
	DuesInterval     time.Duration

	// Notifications
	NotifyWebhookURL string

	// API rate limiting, per client IP. Zero disables it.
	RateLimitPerMinute int
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/condoledger.db"),
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "condoledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_entries"),

		TimeZone:             getEnv("LEDGER_TIME_ZONE", "Europe/Rome"),
		FiscalYearStartMonth: getEnvInt("FISCAL_YEAR_START_MONTH", 1),

		DuesMonthlyCents: getEnvInt64("DUES_MONTHLY_CENTS", 10000),
		DuesInterval:     getEnvDuration("DUES_INTERVAL", 6*time.Hour),

		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}
}

// Validate collects every problem instead of stopping at the first, so a
// broken deployment reports all of its mistakes at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "sqlite", "memory":
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [sqlite memory]", c.DataBackend))
	}

	if c.DataBackend == "sqlite" && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty with the sqlite backend")
	}

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

	if c.TimeZone == "" {
		errors = append(errors, "ledger time zone cannot be empty")
	} else if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid ledger time zone '%s': %v", c.TimeZone, err))
	}

	if c.FiscalYearStartMonth < 1 || c.FiscalYearStartMonth > 12 {
		errors = append(errors, fmt.Sprintf("invalid fiscal year start month %d: must be between 1 and 12", c.FiscalYearStartMonth))
	}

	if c.DuesMonthlyCents < 1 {
		errors = append(errors, fmt.Sprintf("invalid monthly dues %d: must be at least 1 cent", c.DuesMonthlyCents))
	}
	if c.DuesInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid dues interval %v: must be at least 1 minute", c.DuesInterval))
	} else if c.DuesInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid dues interval %v: must be at most 7 days", c.DuesInterval))
	}

	if c.NotifyWebhookURL != "" {
		if parsedURL, err := url.Parse(c.NotifyWebhookURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid notify webhook URL '%s': %v", c.NotifyWebhookURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid notify webhook URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be zero or positive", c.RateLimitPerMinute))
	}

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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
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
