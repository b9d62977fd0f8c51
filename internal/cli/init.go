// Package cli holds the start-up steps shared by cmd/webbudget,
// cmd/webbudget-worker and cmd/period-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"webbudget/internal/backend"
	"webbudget/internal/config"
	applog "webbudget/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger installs a logger for component at the configured level.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	logCfg := applog.DefaultConfig()
	logCfg.Level = cfg.SlogLevel()
	logCfg.Component = component
	if os.Getenv("LOG_FORMAT") == "json" {
		logCfg.Format = "json"
	}
	logger := applog.New(logCfg)
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenBackend opens the configured storage or exits the process.
func OpenBackend(ctx context.Context, cfg *config.Config) *backend.Result {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		slog.ErrorContext(ctx, "Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.Open(ctx, backendCfg)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to open backend", "error", err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	return res
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		slog.Info("Shutdown signal received")
	}()
	return ctx, stop
}
