package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finagent/internal/agent"
	"finagent/internal/cache"
	"finagent/internal/cli"
	"finagent/internal/commands"
	"finagent/internal/events"
	apphttp "finagent/internal/http"
	"finagent/internal/log"
	"finagent/internal/middleware/ratelimit"
	"finagent/internal/query"
	"finagent/internal/services"
)

const cacheCleanupInterval = 5 * time.Minute

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup finishes before the process exits.
func run() int {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger.WithComponent(log.ComponentStorage), cfg.SQLiteDBPath)

	// Events are optional. A broker that is down at startup only disables
	// mirroring; the ledger keeps working.
	var publisher events.Publisher
	if cfg.EventsEnabled() {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WithComponent(log.ComponentEvents).Warn("Event bus unavailable, continuing without events", log.FieldError, err)
		} else {
			publisher = client
			logger.WithComponent(log.ComponentEvents).Info("Event bus connected", "exchange", cfg.AMQPExchange)
		}
	}

	ledger := services.NewLedgerService(repo, publisher)
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Error("Failed to close ledger", log.FieldError, err)
		}
	}()

	facade := commands.NewFacade(ledger, query.NewService(ledger), cfg.RecentDefaultLimit).
		WithLocation(cfg.DisplayLocation())

	resolvers := agent.Chain{agent.DefaultQuickCommands()}
	if cfg.LLMEnabled() {
		resolvers = append(resolvers, agent.NewLLMResolver(agent.LLMConfig{
			URL:     cfg.LLMAPIURL,
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		}))
		logger.WithComponent(log.ComponentChat).Info("Intent model configured", "model", cfg.LLMModel)
	} else {
		logger.WithComponent(log.ComponentChat).Info("No intent model configured, chat understands quick commands only")
	}
	intents := cache.NewLRUCache[agent.Intent](cfg.IntentCacheSize, cfg.IntentCacheTTL)
	chat := agent.New(resolvers, facade, intents)

	sessions := cache.NewLRUCache[[]apphttp.ChatMessage](1000, cfg.ChatSessionTTL)

	caches := cache.NewManager()
	caches.Register(intents)
	caches.Register(sessions)
	caches.StartCleanup(cacheCleanupInterval)
	defer caches.Stop()

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitPerMinute,
	})

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:         ledger,
		Facade:         facade,
		Agent:          chat,
		Sessions:       sessions,
		HistoryLimit:   cfg.ChatHistoryLimit,
		Limiter:        limiter,
		Logger:         logger,
		TrustedProxies: cfg.TrustedProxies,
		Caches: map[string]apphttp.CacheReporter{
			"intents":  intents,
			"sessions": sessions,
		},
	})
	srv.ReadTimeout = 10 * time.Second
	// Chat requests wait on the intent model.
	srv.WriteTimeout = cfg.LLMTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, stop := cli.SignalContext()
	defer stop()

	logger.Info("Starting finagent server",
		"port", cfg.Port,
		"db", cfg.SQLiteDBPath,
		"events", publisher != nil,
		"llm", cfg.LLMEnabled(),
		log.FieldOperation, log.OpStartup)

	err := cli.Run(ctx, logger,
		func(context.Context) error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		cli.ShutdownOnCancel(logger, srv, 30*time.Second),
	)
	if err != nil {
		return 1
	}
	return 0
}
