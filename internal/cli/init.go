// Package cli provides common CLI initialization utilities shared by
// cmd/finagent, cmd/finagent-worker and cmd/ledgerctl.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finagent/internal/config"
	"finagent/internal/log"
	"finagent/internal/storage"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// SetupLogger builds the process logger at the given LOG_LEVEL and installs
// it as the slog default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
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

// InitSQLite opens the ledger store at dbPath.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Task is one long-running part of a process. It must return once ctx is
// cancelled.
type Task func(ctx context.Context) error

// Run starts every task and waits for all of them. The first task to fail
// cancels the others; a task ending with context.Canceled counts as a clean
// stop.
func Run(ctx context.Context, logger *log.Logger, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			if err := task(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		logger.Error("Process stopped with error", log.FieldError, err)
		return err
	}
	logger.Info("Process stopped gracefully")
	return nil
}

// Shutdowner is anything with an http.Server style Shutdown method.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// ShutdownOnCancel returns a task that waits for cancellation and then shuts
// s down within timeout.
func ShutdownOnCancel(logger *log.Logger, s Shutdowner, timeout time.Duration) Task {
	return func(ctx context.Context) error {
		<-ctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
