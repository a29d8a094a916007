package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mochilabs/mochi-analytics/internal/config"
	"github.com/mochilabs/mochi-analytics/internal/generation"
	"github.com/mochilabs/mochi-analytics/internal/platform/gemini"
	"github.com/mochilabs/mochi-analytics/internal/platform/mochi"
	"github.com/mochilabs/mochi-analytics/internal/platform/postgres"
	"github.com/mochilabs/mochi-analytics/internal/platform/slack"
	"github.com/mochilabs/mochi-analytics/internal/scheduler"
	"github.com/mochilabs/mochi-analytics/internal/service"
	"github.com/mochilabs/mochi-analytics/internal/store"
	"github.com/mochilabs/mochi-analytics/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	jobStore      store.JobStore
	scheduleStore store.ScheduleStore

	// Job processing core
	registry   *task.Registry
	queue      *task.Queue
	workerPool *task.WorkerPool

	// Services
	jobService *service.JobService
	scheduler  *scheduler.DigestScheduler
}

// newApplication creates an application instance with all dependencies
// initialized and the worker pool running. It accepts core dependencies that
// must be established before application initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize stores
	app.jobStore = postgres.NewJobStore(db)
	app.scheduleStore = postgres.NewScheduleStore(db)

	// Initialize the job processing core
	app.registry = task.NewRegistry()
	app.queue = task.NewQueue(logger)

	if err := app.registerHandlers(ctx); err != nil {
		return nil, err
	}

	app.jobService = service.NewJobService(app.jobStore, app.queue, app.registry, logger)

	// Starting the pool seals the registry, so handlers register first
	app.workerPool = task.NewWorkerPool(
		app.queue,
		app.registry,
		app.jobStore,
		task.WorkerPoolConfig{WorkerCount: cfg.Worker.Count},
		logger,
	)
	app.workerPool.Start()

	// Initialize the digest scheduler; the manual tick endpoint works even
	// when the recurring cron tick is disabled
	app.scheduler = scheduler.NewDigestScheduler(app.scheduleStore, app.jobService, logger)
	if cfg.Scheduler.Enabled {
		if err := app.scheduler.Start(cfg.Scheduler.CronSpec); err != nil {
			app.workerPool.Stop()
			return nil, fmt.Errorf("failed to start digest scheduler: %w", err)
		}
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// registerHandlers builds and registers the task handlers. The analysis
// handler is always available; the digest handler needs the Slack and Mochi
// integrations configured and is skipped with a warning when they are not.
func (app *application) registerHandlers(ctx context.Context) error {
	analysisHandler, err := task.NewAnalysisHandler(app.logger)
	if err != nil {
		return fmt.Errorf("failed to create analysis handler: %w", err)
	}
	if err := app.registry.Register(analysisHandler); err != nil {
		return fmt.Errorf("failed to register analysis handler: %w", err)
	}

	if app.config.Slack.BotToken == "" || app.config.Mochi.BaseURL == "" {
		app.logger.Warn("Slack or Mochi integration not configured, daily digests disabled",
			"slack_configured", app.config.Slack.BotToken != "",
			"mochi_configured", app.config.Mochi.BaseURL != "")
		return nil
	}

	sender, err := slack.NewClient(app.config.Slack.APIURL, app.config.Slack.BotToken, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create Slack client: %w", err)
	}

	conversations, err := mochi.NewClient(
		app.config.Mochi.BaseURL,
		app.config.Mochi.APIKey,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create Mochi client: %w", err)
	}

	// Narrative generation is optional; without an API key digests go out
	// with metrics only
	var narrator generation.Generator
	if app.config.LLM.GeminiAPIKey != "" {
		narrator, err = gemini.NewGenerator(
			ctx,
			app.logger.With("component", "llm_generator"),
			app.config.LLM,
		)
		if err != nil {
			return fmt.Errorf("failed to initialize LLM generator: %w", err)
		}
		app.logger.Info("LLM generator initialized successfully")
	}

	digestHandler, err := task.NewDailyDigestHandler(
		app.scheduleStore,
		conversations,
		sender,
		narrator,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create daily digest handler: %w", err)
	}
	if err := app.registry.Register(digestHandler); err != nil {
		return fmt.Errorf("failed to register daily digest handler: %w", err)
	}

	return nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources. Order matters:
// the scheduler stops submitting first, then the queue stops accepting, then
// the workers drain.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	if app.queue != nil {
		app.queue.Close()
	}

	if app.workerPool != nil {
		app.workerPool.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
