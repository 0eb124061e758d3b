package main

import (
	"context"
	"os"
	"time"

	"finagent/internal/cache"
	"finagent/internal/cli"
	"finagent/internal/config"
	"finagent/internal/events"
	"finagent/internal/journal"
	gjournal "finagent/internal/journal/google"
	"finagent/internal/journal/memory"
	"finagent/internal/log"
	"finagent/internal/worker"
)

const (
	dedupeSize           = 10000
	cacheCleanupInterval = 10 * time.Minute
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup finishes before the process exits.
func run() int {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.EventsEnabled() {
		logger.Error("AMQP_URL is required for the journal worker")
		return 1
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	repo := cli.InitSQLite(logger.WithComponent(log.ComponentStorage), cfg.SQLiteDBPath)
	defer repo.Close()

	writer, err := newJournal(ctx, cfg)
	if err != nil {
		logger.WithComponent(log.ComponentJournal).Error("Failed to initialize journal", log.FieldError, err, "backend", cfg.JournalBackend)
		return 1
	}
	logger.WithComponent(log.ComponentJournal).Info("Journal initialized", "backend", cfg.JournalBackend)

	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.WithComponent(log.ComponentEvents).Error("Failed to initialize AMQP client", log.FieldError, err)
		return 1
	}
	defer client.Close()

	mirror := worker.NewMirrorWorker(repo, writer, dedupeSize)

	caches := cache.NewManager()
	caches.Register(mirror.Seen())
	caches.StartCleanup(cacheCleanupInterval)
	defer caches.Stop()

	logger.Info("Starting finagent-worker",
		"queue", cfg.AMQPQueue,
		log.FieldOperation, log.OpStartup)

	if err := cli.Run(ctx, logger, func(ctx context.Context) error {
		return client.Consume(ctx, mirror.HandleEvent)
	}); err != nil {
		return 1
	}
	return 0
}

func newJournal(ctx context.Context, cfg *config.Config) (journal.Writer, error) {
	switch cfg.JournalBackend {
	case config.JournalSheets:
		return gjournal.New(ctx, gjournal.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
	default:
		return memory.New(), nil
	}
}
