// Package cli holds the startup steps shared by cmd/pocket and cmd/pocket-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pocket/internal/config"
	"pocket/internal/log"
	"pocket/internal/storage"
)

// LoadEnvFile loads .env for local development. A missing file is ignored.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and makes it the slog default.
func SetupLogger(component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(os.Getenv("LOG_LEVEL"))
	if component != "" {
		cfg.Component = component
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and exits the process when it is invalid.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenKV opens the device store at path. An empty path selects an in-memory
// store that is lost on exit.
func OpenKV(logger *log.Logger, path string) (storage.KV, func()) {
	if path == "" {
		logger.Warn("SQLITE_DB_PATH is empty, device data will not survive a restart")
		return storage.NewMemoryKV(), func() {}
	}
	kv, err := storage.NewSQLiteKV(path)
	if err != nil {
		logger.Error("Failed to open SQLite store", log.FieldError, err, "path", path)
		os.Exit(1)
	}
	return kv, func() {
		if err := kv.Close(); err != nil {
			logger.Error("Failed to close SQLite store", log.FieldError, err)
		}
	}
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

// ShutdownContext bounds the time cleanup may take once the process is stopping.
func ShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
