package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Storage backends for the ledger state.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Backup targets for export and import.
const (
	TargetSheets = "sheets"
	TargetXLSX   = "xlsx"
	TargetMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	LogLevel           string

	// Storage
	DataBackend  string
	SQLiteDBPath string

	// AMQP; an empty URL disables change events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Backup
	BackupTarget             string
	BackupXLSXPath           string
	BackupDebounce           time.Duration
	BackupTimeout            time.Duration
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Exchange rates
	RatesURL               string
	RatesRefreshInterval   time.Duration
	SecondaryCurrency      string
	DefaultDisplayCurrency string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		LogLevel:           getEnv("LOG_LEVEL", "info"),

		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/moneymanager.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "moneymanager"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_changes"),

		BackupTarget:             getEnv("BACKUP_TARGET", TargetSheets),
		BackupXLSXPath:           getEnv("BACKUP_XLSX_PATH", "./data/backup.xlsx"),
		BackupDebounce:           getEnvDuration("BACKUP_DEBOUNCE", 10*time.Second),
		BackupTimeout:            getEnvDuration("BACKUP_TIMEOUT", 30*time.Second),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		RatesURL:               getEnv("RATES_URL", "https://api.exchangerate-api.com/v4/latest/USD"),
		RatesRefreshInterval:   getEnvDuration("RATES_REFRESH_INTERVAL", 30*time.Minute),
		SecondaryCurrency:      strings.ToUpper(getEnv("SECONDARY_CURRENCY", "UAH")),
		DefaultDisplayCurrency: strings.ToUpper(getEnv("DEFAULT_DISPLAY_CURRENCY", "USD")),
	}
}

// Validate validates the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	validBackends := []string{BackendMemory, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if err := ensureDir(c.SQLiteDBPath); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create SQLite database directory: %v", err))
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

	validTargets := []string{TargetSheets, TargetXLSX, TargetMemory}
	if !slices.Contains(validTargets, c.BackupTarget) {
		errors = append(errors, fmt.Sprintf("invalid backup target '%s': must be one of %v", c.BackupTarget, validTargets))
	}
	if c.BackupTarget == TargetXLSX && c.BackupXLSXPath == "" {
		errors = append(errors, "backup XLSX path cannot be empty when using xlsx backup target")
	}
	if c.BackupTarget == TargetSheets && c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if c.BackupDebounce < 0 || c.BackupDebounce > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid backup debounce %v: must be between 0 and 1 hour", c.BackupDebounce))
	}
	if c.BackupTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid backup timeout %v: must be at least 1 second", c.BackupTimeout))
	}

	if parsedURL, err := url.Parse(c.RatesURL); err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		errors = append(errors, fmt.Sprintf("invalid rates URL '%s': must be an http(s) URL", c.RatesURL))
	}
	if c.RatesRefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rates refresh interval %v: must be at least 1 minute", c.RatesRefreshInterval))
	} else if c.RatesRefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid rates refresh interval %v: must be at most 24 hours", c.RatesRefreshInterval))
	}

	if len(c.SecondaryCurrency) != 3 || c.SecondaryCurrency == "USD" {
		errors = append(errors, fmt.Sprintf("invalid secondary currency '%s': must be a 3-letter code other than USD", c.SecondaryCurrency))
	}
	if c.DefaultDisplayCurrency != "USD" && c.DefaultDisplayCurrency != c.SecondaryCurrency {
		errors = append(errors, fmt.Sprintf("invalid default display currency '%s': must be USD or %s", c.DefaultDisplayCurrency, c.SecondaryCurrency))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ParseLogLevel maps LOG_LEVEL names to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", s)
	}
	return level, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
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
