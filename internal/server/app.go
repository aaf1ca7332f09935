// Package server builds the application's dependencies and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/cornell-notes/internal/api"
	"github.com/JakeFAU/cornell-notes/internal/asset"
	gcsassets "github.com/JakeFAU/cornell-notes/internal/asset/gcs"
	localassets "github.com/JakeFAU/cornell-notes/internal/asset/local"
	memoryassets "github.com/JakeFAU/cornell-notes/internal/asset/memory"
	"github.com/JakeFAU/cornell-notes/internal/browser/headless"
	"github.com/JakeFAU/cornell-notes/internal/browser/static"
	"github.com/JakeFAU/cornell-notes/internal/capture"
	"github.com/JakeFAU/cornell-notes/internal/clock/system"
	"github.com/JakeFAU/cornell-notes/internal/config"
	"github.com/JakeFAU/cornell-notes/internal/dispatcher"
	"github.com/JakeFAU/cornell-notes/internal/id/uuid"
	"github.com/JakeFAU/cornell-notes/internal/jobs"
	"github.com/JakeFAU/cornell-notes/internal/note"
	memorypublisher "github.com/JakeFAU/cornell-notes/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/cornell-notes/internal/publisher/pubsub"
	queuememory "github.com/JakeFAU/cornell-notes/internal/queue/memory"
	"github.com/JakeFAU/cornell-notes/internal/render"
	"github.com/JakeFAU/cornell-notes/internal/resolver"
	"github.com/JakeFAU/cornell-notes/internal/service"
	memorystorage "github.com/JakeFAU/cornell-notes/internal/storage/memory"
	pgstore "github.com/JakeFAU/cornell-notes/internal/storage/postgres"
	"github.com/JakeFAU/cornell-notes/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	service    *service.Service
	renditions *resolver.Cache
	apiServer  *api.Server
	dispatch   *dispatcher.Dispatcher
	queue      *queuememory.Queue

	storage      *storage.Client
	pubsubClient *pubsub.Client
	publisher    *gcppublisher.Publisher
	repo         *pgstore.NoteRepository
}

// Build creates the application's dependencies from cfg.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("db_backend", cfg.DB.Backend),
		zap.Bool("headless", cfg.Headless.Enabled),
	)

	ok := false
	defer func() {
		if !ok {
			app.closeInfrastructure()
		}
	}()

	assets, err := setupAssets(ctx, app)
	if err != nil {
		return nil, err
	}
	repo, err := setupRepository(ctx, app)
	if err != nil {
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}
	browser, mode, err := setupBrowser(app)
	if err != nil {
		return nil, err
	}

	pipeline, err := capture.New(browser, assets, logger.Named("capture"), capture.Config{
		Folder: cfg.Capture.Folder,
		Mode:   mode,
	})
	if err != nil {
		return nil, fmt.Errorf("capture pipeline init failed: %w", err)
	}

	clock := system.New()
	ids := uuid.New()
	app.service, err = service.New(service.Deps{
		Pipeline:  pipeline,
		Repo:      repo,
		Assets:    assets,
		IDs:       ids,
		Publisher: publisher,
		Clock:     clock,
		Logger:    logger.Named("service"),
	}, service.Config{
		Folder:               cfg.Capture.Folder,
		Topic:                cfg.PubSub.TopicName,
		RemoveTagConcurrency: cfg.DB.RemoveTagConcurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("service init failed: %w", err)
	}

	app.dispatch = setupDispatcher(app, clock, ids)
	app.renditions = resolver.NewCache(assets, cfg.Resolver.CacheSize)

	deps := api.Deps{
		Notes:      app.service,
		Captures:   app.dispatch,
		Renditions: app.renditions,
		Renderer:   render.New(),
	}
	if files, ok := assets.(http.Handler); ok {
		deps.Assets = files
	}
	app.apiServer, err = api.NewServer(deps, cfg, logger.Named("api"))
	if err != nil {
		return nil, fmt.Errorf("api server init failed: %w", err)
	}

	ok = true
	return app, nil
}

// Service returns the notes service shared by the API and the CLI.
func (a *App) Service() *service.Service {
	return a.service
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Renditions returns the shared rendition cache.
func (a *App) Renditions() note.Transformer {
	return a.renditions
}

// ResolverOptions returns the configured options for per-surface rendition resolvers.
func (a *App) ResolverOptions() []resolver.Option {
	return []resolver.Option{
		resolver.WithDebounce(a.cfg.Resolver.Debounce()),
		resolver.WithTimeout(a.cfg.Resolver.TransformTimeout()),
		resolver.WithLogger(a.logger.Named("resolver")),
	}
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the capture workers and the HTTP server and blocks until ctx is canceled
// or the process receives SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		a.logger.Info("dispatcher started", zap.Int("workers", a.cfg.Capture.Workers))
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	return a.Close(shutdownCtx)
}

// Close releases every resource Build acquired. It is safe to call more than once.
func (a *App) Close(_ context.Context) error {
	if a.queue != nil {
		a.queue.Close()
	}
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.publisher != nil {
		a.publisher.Close()
		a.publisher = nil
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.pubsubClient = nil
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.storage = nil
	}
	if a.repo != nil {
		a.repo.Close()
		a.repo = nil
	}
}

func setupAssets(ctx context.Context, app *App) (note.AssetStore, error) {
	cfg := app.cfg
	urls, err := asset.NewURLBuilder(cfg.Storage.CDNHost, cfg.Storage.CDNNamespace, cfg.Capture.Folder)
	if err != nil {
		return nil, fmt.Errorf("asset url builder init failed: %w", err)
	}
	switch cfg.Storage.Backend {
	case config.BackendGCS:
		app.logger.Info("using GCS asset backend", zap.String("bucket", cfg.Storage.GCSBucket))
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		store, err := gcsassets.New(app.storage, gcsassets.Config{
			Bucket:       cfg.Storage.GCSBucket,
			ContentType:  "image/png",
			CacheControl: cfg.Storage.CacheControl,
		}, urls)
		if err != nil {
			return nil, fmt.Errorf("gcs asset store init failed: %w", err)
		}
		return store, nil
	case config.BackendLocal:
		app.logger.Info("using local asset backend", zap.String("path", cfg.Storage.LocalDir))
		store, err := localassets.New(localassets.Config{BaseDir: cfg.Storage.LocalDir}, urls)
		if err != nil {
			return nil, fmt.Errorf("local asset store init failed: %w", err)
		}
		return store, nil
	default:
		app.logger.Info("using in-memory asset backend")
		return memoryassets.NewStore(urls), nil
	}
}

func setupRepository(ctx context.Context, app *App) (note.Repository, error) {
	cfg := app.cfg.DB
	if cfg.Backend != config.BackendPostgres {
		app.logger.Warn("using in-memory note repository; notes are lost on restart")
		return memorystorage.NewNoteRepository(), nil
	}
	repo, err := pgstore.New(ctx, pgstore.Config{
		DSN:             cfg.DSN,
		Table:           cfg.Table,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime(),
	})
	if err != nil {
		return nil, fmt.Errorf("note repository init failed: %w", err)
	}
	app.repo = repo
	app.logger.Info("note repository initialized", zap.String("table", cfg.Table))
	return repo, nil
}

func setupPublisher(ctx context.Context, app *App) (note.Publisher, error) {
	cfg := app.cfg.PubSub
	switch {
	case cfg.TopicName == "":
		app.logger.Info("no Pub/Sub topic configured, lifecycle events disabled")
		return nil, nil
	case cfg.ProjectID == "":
		app.logger.Warn("no Pub/Sub project configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.publisher = gcppublisher.New(app.pubsubClient)
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", cfg.ProjectID),
		zap.String("topic", cfg.TopicName),
	)
	return app.publisher, nil
}

func setupBrowser(app *App) (note.Browser, string, error) {
	cfg := app.cfg
	if !cfg.Headless.Enabled {
		app.logger.Warn("headless capture disabled, notes will have no screenshot")
		return static.New(static.Config{
			UserAgent: cfg.Headless.UserAgent,
			Timeout:   cfg.Capture.StaticTimeout(),
		}), "static", nil
	}
	session, err := headless.New(headless.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.Headless.UserAgent,
		NavigationTimeout: cfg.Headless.NavTimeout(),
		NetworkIdle:       cfg.Headless.NetworkIdle(),
		ExecPath:          cfg.Headless.ExecPath,
		NoSandbox:         cfg.Headless.NoSandbox,
	}, app.logger.Named("headless"))
	if err != nil {
		return nil, "", fmt.Errorf("headless browser init failed: %w", err)
	}
	app.logger.Info("using headless browser", zap.Int("max_parallel", cfg.Headless.MaxParallel))
	return session, "headless", nil
}

func setupDispatcher(app *App, clock note.Clock, ids note.IDGenerator) *dispatcher.Dispatcher {
	cfg := app.cfg.Capture
	app.queue = queuememory.NewQueue(cfg.QueueDepth)
	store := jobs.NewMemoryStore(clock, cfg.JobRetention)
	workerCfg := worker.Config{CaptureTimeout: cfg.JobTimeout()}
	workers := make([]*worker.Worker, 0, cfg.Workers)
	for i := range cfg.Workers {
		workers = append(workers, worker.New(
			app.queue,
			store,
			app.service,
			workerCfg,
			app.logger.Named("worker").With(zap.Int("worker", i)),
		))
	}
	app.logger.Info("capture workers configured",
		zap.Int("workers", cfg.Workers),
		zap.Int("queue_depth", cfg.QueueDepth),
		zap.Duration("job_timeout", workerCfg.CaptureTimeout),
	)
	return dispatcher.New(app.queue, store, ids, workers, app.logger.Named("dispatcher"))
}
