package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Backend selection
	DataBackend string

	// SQLite
	SQLiteDBPath string

	// MongoDB
	MongoURI      string
	MongoDatabase string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration
	RememberMeTTL time.Duration

	// Analysis
	Timezone            string
	UnknownCategoryMode string
	SnapshotCacheTTL    time.Duration
	SnapshotCacheSize   int

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	LogLevel string
}

var (
	validBackends     = []string{"memory", "sqlite", "mongo"}
	validUnknownModes = []string{"drop", "bucket"}
	validLogLevels    = []string{"debug", "info", "warn", "error"}
)

// Load reads the configuration from the process environment.
func Load() *Config {
	return LoadWith(os.Getenv)
}

// LoadWith reads the configuration through lookup, which returns an empty
// string for unset keys. The CLI passes a viper-backed lookup here.
func LoadWith(lookup func(string) string) *Config {
	src := source(lookup)
	return &Config{
		Port:               src.getEnv("PORT", "8081"),
		RateLimitPerMinute: src.getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend:  src.getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: src.getEnv("SQLITE_DB_PATH", "./data/financas.db"),

		MongoURI:      src.getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: src.getEnv("MONGO_DATABASE", "financas"),

		AMQPURL:      src.getEnv("AMQP_URL", ""),
		AMQPExchange: src.getEnv("AMQP_EXCHANGE", "financas"),
		AMQPQueue:    src.getEnv("AMQP_QUEUE", "transaction_events"),

		GoogleSpreadsheetID:      src.getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          src.getEnv("GOOGLE_SHEET_NAME", "Transacoes"),
		GoogleServiceAccountJSON: src.getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: src.getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SessionSecret: src.getEnv("SESSION_SECRET", ""),
		SessionTTL:    src.getEnvDuration("SESSION_TTL", 12*time.Hour),
		RememberMeTTL: src.getEnvDuration("REMEMBER_ME_TTL", 30*24*time.Hour),

		Timezone:            src.getEnv("TIMEZONE", "America/Sao_Paulo"),
		UnknownCategoryMode: src.getEnv("UNKNOWN_CATEGORY_MODE", "drop"),
		SnapshotCacheTTL:    src.getEnvDuration("SNAPSHOT_CACHE_TTL", 2*time.Minute),
		SnapshotCacheSize:   src.getEnvInt("SNAPSHOT_CACHE_SIZE", 256),

		SyncBatchSize: src.getEnvInt("SYNC_BATCH_SIZE", 100),
		SyncInterval:  src.getEnvDuration("SYNC_INTERVAL", 5*time.Minute),

		LogLevel: src.getEnv("LOG_LEVEL", "info"),
	}
}

// Location returns the time zone month boundaries are computed in.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// AMQPEnabled reports whether transaction events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// SheetsEnabled reports whether the spreadsheet mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
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
	}

	if c.DataBackend == "mongo" {
		if parsed, err := url.Parse(c.MongoURI); err != nil || (parsed.Scheme != "mongodb" && parsed.Scheme != "mongodb+srv") {
			errors = append(errors, fmt.Sprintf("invalid MongoDB URI '%s': must use mongodb or mongodb+srv scheme", c.MongoURI))
		}
		if c.MongoDatabase == "" {
			errors = append(errors, "MongoDB database name cannot be empty when using mongo backend")
		}
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

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for the sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(c.SessionSecret) < 16 {
		errors = append(errors, "SESSION_SECRET must be at least 16 characters")
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.RememberMeTTL < c.SessionTTL {
		errors = append(errors, fmt.Sprintf("invalid remember-me TTL %v: must not be shorter than the session TTL", c.RememberMeTTL))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}
	if !slices.Contains(validUnknownModes, c.UnknownCategoryMode) {
		errors = append(errors, fmt.Sprintf("invalid unknown category mode '%s': must be one of %v", c.UnknownCategoryMode, validUnknownModes))
	}
	if c.SnapshotCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid snapshot cache TTL %v: must not be negative", c.SnapshotCacheTTL))
	}
	if c.SnapshotCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid snapshot cache size %d: must be at least 1", c.SnapshotCacheSize))
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}
	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

type source func(string) string

func (s source) getEnv(key, defaultValue string) string {
	if value := s(key); value != "" {
		return value
	}
	return defaultValue
}

func (s source) getEnvInt(key string, defaultValue int) int {
	if value := s(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func (s source) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := s(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
