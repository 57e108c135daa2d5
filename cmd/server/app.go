package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/menulens/menulens-api/internal/config"
	"github.com/menulens/menulens-api/internal/events"
	"github.com/menulens/menulens-api/internal/platform/gemini"
	"github.com/menulens/menulens-api/internal/platform/postgres"
	"github.com/menulens/menulens-api/internal/platform/s3blob"
	"github.com/menulens/menulens-api/internal/provider"
	"github.com/menulens/menulens-api/internal/service"
	"github.com/menulens/menulens-api/internal/store"
	"github.com/menulens/menulens-api/internal/task"
)

// application holds the wired components of the server.
type application struct {
	config *config.Config
	logger *slog.Logger

	db          *sql.DB
	deviceStore store.DeviceUserStore
	scanService service.ScanService

	queue  *task.TaskQueue
	runner *task.Runner
}

// newApplication builds the full dependency graph: database and blob
// storage, Gemini providers, the event-driven task pipeline, and the scan
// service on top.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	ctx := context.Background()

	db, err := setupDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(db, logger); err != nil {
		return nil, err
	}

	scanStore := postgres.NewPostgresScanStore(db, logger)
	dishStore := postgres.NewPostgresDishStore(db, logger)
	deviceStore := postgres.NewPostgresDeviceUserStore(db, logger)

	client, err := gemini.NewClient(ctx, cfg.Gemini)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	extractor, err := gemini.NewMenuExtractor(client, cfg.Gemini, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create menu extractor: %w", err)
	}
	geminiGen, err := gemini.NewGeminiImageGenerator(client, cfg.Gemini, cfg.Pipeline, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini image generator: %w", err)
	}
	imagenGen, err := gemini.NewImagenImageGenerator(client, cfg.Gemini, cfg.Pipeline, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create imagen image generator: %w", err)
	}

	blobs, err := s3blob.New(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob store: %w", err)
	}

	emitter := events.NewInMemoryEmitter(logger)

	scanService, err := service.NewScanService(
		scanStore, dishStore, deviceStore,
		extractor, blobs, emitter,
		cfg.Pipeline, logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan service: %w", err)
	}

	// The scan service settles worker outcomes, so the task factory closes
	// over it; events flow service -> emitter -> handler -> queue -> runner.
	queue := task.NewTaskQueue(cfg.Pipeline.QueueSize, logger)
	factory, err := task.NewDishImageTaskFactory(
		dishStore,
		map[string]provider.ImageGenerator{
			gemini.VariantGemini: geminiGen,
			gemini.VariantImagen: imagenGen,
		},
		cfg.Pipeline.DefaultImageProvider,
		blobs,
		scanService,
		cfg.Pipeline.PromptTemplate,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task factory: %w", err)
	}
	emitter.RegisterHandler(task.NewDishImageEventHandler(factory, queue, logger))

	runner := task.NewRunner(queue, task.RunnerConfig{
		WorkerCount: cfg.Pipeline.WorkerCount,
	}, logger)

	return &application{
		config:      cfg,
		logger:      logger,
		db:          db,
		deviceStore: deviceStore,
		scanService: scanService,
		queue:       queue,
		runner:      runner,
	}, nil
}

// run starts the workers, resolves work orphaned by the previous process,
// and serves HTTP until a shutdown signal arrives.
func (app *application) run() error {
	app.runner.Start()

	// Recovery re-emits queued dishes, so the runner must already be
	// consuming before it runs.
	if err := app.scanService.RecoverInterrupted(context.Background()); err != nil {
		app.logger.Error("startup recovery failed", "error", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdownCh:
		app.logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		app.cleanup()
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
	}

	app.cleanup()
	app.logger.Info("server shutdown completed")
	return nil
}

// cleanup drains the task pipeline and closes the database. The queue is
// closed first so no new work lands while workers finish in-flight tasks.
func (app *application) cleanup() {
	app.queue.Close()
	app.runner.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database", "error", err)
	}
}
