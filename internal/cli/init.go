// Package cli provides the initialization shared by cmd/finanzas,
// cmd/finanzas-worker and cmd/finctl.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finanzas/internal/config"
	applog "finanzas/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config) *applog.Logger {
	lc := applog.DefaultConfig()
	if cfg != nil {
		lc.Level = applog.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad loads .env, the configuration and the logger, exiting the
// process on an invalid configuration.
func MustLoad() (*config.Config, *applog.Logger) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		logger := SetupLogger(nil)
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg, SetupLogger(cfg)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. Once the
// signal arrives cleanup runs with a context bounded by timeout; done is
// closed when it returns.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context) error) (context.Context, <-chan struct{}) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		cancel()
		logger.Info("Shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			if err := cleanup(shutdownCtx); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					logger.Warn("Shutdown timeout reached", "timeout", timeout.String())
				} else {
					logger.Error("Shutdown cleanup failed", applog.FieldError, err)
				}
				return
			}
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

// Fatal logs err and exits with status 1.
func Fatal(logger *applog.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{applog.FieldError, err}, args...)...)
	os.Exit(1)
}

func wrap(step string, err error) error {
	return fmt.Errorf("%s: %w", step, err)
}
