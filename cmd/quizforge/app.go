package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/quizforge/internal/api"
	"github.com/phrazzld/quizforge/internal/config"
	"github.com/phrazzld/quizforge/internal/events"
	"github.com/phrazzld/quizforge/internal/generation"
	"github.com/phrazzld/quizforge/internal/pipeline"
	"github.com/phrazzld/quizforge/internal/platform/gemini"
	"github.com/phrazzld/quizforge/internal/platform/postgres"
	"github.com/phrazzld/quizforge/internal/quota"
	"github.com/phrazzld/quizforge/internal/scheduler"
	"github.com/phrazzld/quizforge/internal/stats"
	"github.com/phrazzld/quizforge/internal/store"
)

// application holds the wired dependencies of one generation run.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	items      store.ItemStore
	rejections store.RejectionStore
	emitter    *events.InMemoryEventEmitter
	scheduler  *scheduler.Scheduler
}

// newApplication wires the generation stack from configuration.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{config: cfg, logger: logger}

	if err := app.setupSink(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	client, err := gemini.NewClient(ctx, logger.With("component", "llm_client"), cfg.LLM)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	logger.Info("LLM client initialized", "model", cfg.LLM.ModelName)

	stages, err := generation.NewStages(client, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create generation stages: %w", err)
	}

	sched, err := app.buildScheduler(stages)
	if err != nil {
		app.cleanup()
		return nil, err
	}
	app.scheduler = sched
	return app, nil
}

// buildScheduler assembles the pipeline, quota, stats and event wiring
// around the given stages.
func (app *application) buildScheduler(stages pipeline.Stages) (*scheduler.Scheduler, error) {
	gen := app.config.Generation

	pipe, err := pipeline.New(stages, pipeline.Config{
		MaxImplementerRetries: gen.MaxImplementerRetries,
		MaxIdeationRetries:    gen.MaxIdeationRetries,
		EnableTagging:         gen.EnableTagging,
	}, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	buckets, err := gen.DomainBuckets()
	if err != nil {
		return nil, fmt.Errorf("invalid buckets: %w", err)
	}
	tracker, err := quota.NewTracker(buckets)
	if err != nil {
		return nil, fmt.Errorf("failed to create quota tracker: %w", err)
	}

	app.emitter = events.NewInMemoryEventEmitter(app.logger)
	app.emitter.RegisterHandler(events.NewLogHandler(app.logger))

	sched, err := scheduler.New(
		pipe,
		tracker,
		stats.NewAggregator(buckets),
		app.items,
		scheduler.Config{
			MaxWorkers:             gen.MaxWorkers,
			MaxConsecutiveFailures: gen.MaxConsecutiveFailures,
			ProgressInterval:       time.Duration(gen.ProgressIntervalSeconds) * time.Second,
		},
		app.logger,
		scheduler.WithRejectionStore(app.rejections),
		scheduler.WithStageObserver(app.emitter),
		scheduler.WithProgressObserver(app.emitter),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return sched, nil
}

// setupSink stores items in postgres when a database is configured and
// logs them otherwise.
func (app *application) setupSink(ctx context.Context) error {
	if app.config.Database.URL == "" {
		app.logger.Warn("no database configured, accepted items will only be logged")
		logStore := store.NewLogStore(app.logger)
		app.items = logStore
		app.rejections = logStore
		return nil
	}

	db, err := postgres.Open(ctx, app.config.Database.URL, app.logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	app.db = db

	items, err := postgres.NewItemStore(db, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create item store: %w", err)
	}
	app.items = items
	app.rejections = postgres.NewRejectionStore(db, app.logger)
	return nil
}

// run executes the generation run, serving the status API alongside it
// when configured.
func (app *application) run(ctx context.Context) scheduler.RunReport {
	if addr := app.config.Server.StatusAddr; addr != "" {
		serverCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			router := api.NewRouter(app.scheduler, app.logger)
			if err := api.Serve(serverCtx, addr, router, app.logger); err != nil {
				app.logger.Error("status server stopped", "error", err)
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	start := time.Now()
	report := app.scheduler.Run(ctx)

	attrs := []any{
		"status", report.Status,
		"attempts", report.Stats.TotalAttempts,
		"succeeded", report.Stats.Succeeded,
		"failed", report.Stats.Failed,
		"persist_failures", report.Stats.PersistFailures,
		"success_rate", report.Stats.SuccessRate(),
		"duration", time.Since(start).String(),
	}
	switch {
	case report.Err == nil:
		app.logger.Info("generation run completed", attrs...)
	case errors.Is(report.Err, context.Canceled):
		app.logger.Warn("generation run interrupted", append(attrs, "error", report.Err)...)
	default:
		app.logger.Error("generation run stopped early", append(attrs, "error", report.Err)...)
	}
	for _, b := range report.Buckets {
		app.logger.Info("bucket summary",
			"bucket_id", b.ID,
			"succeeded", b.Succeeded,
			"target", b.Target)
	}
	return report
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
		app.db = nil
	}
}
