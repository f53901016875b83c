// Package cli provides common initialization for the moneymanager binaries:
// cmd/moneymanager, cmd/backup-worker and cmd/ledgerctl.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"moneymanager/internal/config"
	"moneymanager/internal/log"
	"moneymanager/internal/storage"
)

// SetupLogger initializes structured logging at the given level name and
// installs it as the default logger. Unknown names fall back to info.
func SetupLogger(level, component string) *log.Logger {
	lvl, _ := config.ParseLogLevel(level)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: component,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}),
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens and migrates the SQLite store.
// Returns the store or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteStore {
	logger = logger.WithComponent(log.ComponentStorage)
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite store", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	logger.Info("Opened SQLite store", "path", dbPath, "schema_version", store.SchemaVersion())
	return store
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Shutdown runs cleanup bounded by timeout and logs whether it finished in time.
func Shutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if cleanup != nil {
			cleanup(ctx)
		}
	}()

	select {
	case <-done:
		logger.Info("Shutdown complete")
	case <-ctx.Done():
		logger.Warn("Shutdown timeout reached")
	}
}
