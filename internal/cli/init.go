// Package cli provides common process bootstrap shared by cmd/sheetexpense,
// cmd/sheetexpense-worker and cmd/sheetexpense-admin.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sheetexpense/internal/config"
	"sheetexpense/internal/log"
	"sheetexpense/internal/storage"

	"github.com/joho/godotenv"
)

// SetupLogger builds a text logger at level and makes it the default.
// An unknown level falls back to info.
func SetupLogger(level, component string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	logger := log.NewText(os.Stdout, lvl, component)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info logging", log.FieldError, err)
	}
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

// OpenStorage opens the identifier cache and applies migrations.
// Returns the repository or exits the process on failure.
func OpenStorage(ctx context.Context, logger *log.Logger, databaseURL string) *storage.Repository {
	repo, err := storage.Open(ctx, databaseURL)
	if err != nil {
		logger.Error("Failed to open database", log.FieldError, err)
		os.Exit(1)
	}
	return repo
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
			logger.Info("Shutdown signal received", log.FieldSignal, sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
