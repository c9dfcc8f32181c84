// Package app initializes and holds long-lived application services, acting
// as the dependency injection container for the CLI and the HTTP server.
package app

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ragops/harvester/internal/clock/system"
	"github.com/ragops/harvester/internal/config"
	"github.com/ragops/harvester/internal/crawler"
	"github.com/ragops/harvester/internal/extractor/markdown"
	collyfetcher "github.com/ragops/harvester/internal/fetcher/colly"
	"github.com/ragops/harvester/internal/hash/sha256"
	iduuid "github.com/ragops/harvester/internal/id/uuid"
	"github.com/ragops/harvester/internal/indexer"
	"github.com/ragops/harvester/internal/logging"
	"github.com/ragops/harvester/internal/progress"
	"github.com/ragops/harvester/internal/progress/sinks"
	pubmemory "github.com/ragops/harvester/internal/publisher/memory"
	pubsubpub "github.com/ragops/harvester/internal/publisher/pubsub"
	"github.com/ragops/harvester/internal/storage/gcs"
	"github.com/ragops/harvester/internal/storage/local"
	"github.com/ragops/harvester/internal/storage/memory"
	"github.com/ragops/harvester/internal/storage/postgres"
)

// App holds the shared, long-lived services for the application. It is
// initialized once at startup and passed to the components that need it.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	runs      *memory.RunStore
	blobs     crawler.BlobStore
	pages     crawler.PageStore
	publisher crawler.Publisher
	fetcher   crawler.Fetcher
	extractor crawler.ContentExtractor
	hasher    crawler.Hasher
	idGen     crawler.IDGenerator
	clock     crawler.Clock
	hub       *progress.Hub
	indexer   *indexer.Indexer

	pubsubClient *pubsub.Client
	pgPages      *postgres.PageStore

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates and initializes an App from configuration. It fails fast if
// any configured backend cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		runs:    memory.NewRunStore(),
		hasher:  sha256.New(),
		idGen:   iduuid.New(),
		clock:   system.New(),
		cancels: make(map[string]context.CancelFunc),
	}

	if err := a.initBlobStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initPageStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		return nil, err
	}

	a.fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	a.extractor = markdown.New()

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	a.hub = progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)

	topic := ""
	if cfg.PubSub.ProjectID != "" {
		topic = cfg.PubSub.TopicName
	}
	a.indexer, err = indexer.New(
		indexer.Config{PathPrefix: cfg.Storage.Prefix, Topic: topic},
		a.blobs, a.pages, a.publisher, a.hasher, a.clock, logger.Named("indexer"),
	)
	if err != nil {
		return nil, fmt.Errorf("init indexer: %w", err)
	}

	logger.Info("application services initialized",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("pubsub_enabled", cfg.PubSub.ProjectID != ""),
	)
	return a, nil
}

func (a *App) initBlobStore(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case "local":
		store, err := local.New(local.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("init local blob store: %w", err)
		}
		a.blobs = store
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs blob store: %w", err)
		}
		a.blobs = store
	case "memory":
		a.blobs = memory.NewBlobStore()
	default:
		return fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
	return nil
}

// initPageStore picks Postgres when a DSN is configured; the in-memory run
// store doubles as the page index otherwise.
func (a *App) initPageStore(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.pages = a.runs
		return nil
	}
	store, err := postgres.NewPageStore(ctx, postgres.PageStoreConfig{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: int32(a.cfg.DB.MaxConns),
		MinConns: int32(a.cfg.DB.MinConns),
	})
	if err != nil {
		return fmt.Errorf("init postgres page store: %w", err)
	}
	a.pgPages = store
	a.pages = store
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if a.cfg.PubSub.ProjectID == "" {
		a.publisher = pubmemory.New()
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("init pubsub client: %w", err)
	}
	a.pubsubClient = client
	a.publisher = pubsubpub.New(client)
	return nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Runs returns the run store.
func (a *App) Runs() crawler.RunStore {
	return a.runs
}

// IDGen returns the ID generator.
func (a *App) IDGen() crawler.IDGenerator {
	return a.idGen
}

// Clock returns the shared clock.
func (a *App) Clock() crawler.Clock {
	return a.clock
}

// crawlConfig converts a submitted run into engine configuration.
func (a *App) crawlConfig(run crawler.Run) crawler.Config {
	maxConcurrency := run.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = a.cfg.Crawler.MaxConcurrency
	}
	return crawler.Config{
		SeedURL:          run.SeedURL,
		MaxPages:         run.MaxPages,
		MaxConcurrency:   maxConcurrency,
		MaxRetries:       a.cfg.Crawler.MaxRetries,
		FinalPassRetries: a.cfg.Crawler.FinalPassRetries,
		FetchTimeout:     a.cfg.FetchTimeout(),
		ConvertTimeout:   a.cfg.ConvertTimeout(),
		MinBodyBytes:     a.cfg.Crawler.MinBodyBytes,
	}
}

// Crawl executes one crawl synchronously: run the engine, index the
// result, and record run state transitions along the way.
func (a *App) Crawl(ctx context.Context, run crawler.Run) (crawler.Result, error) {
	driver, err := crawler.NewDriver(
		a.crawlConfig(run),
		a.fetcher,
		a.extractor,
		a.clock,
		a.hub,
		a.logger.Named("crawler"),
	)
	if err != nil {
		return crawler.Result{}, fmt.Errorf("build crawl driver: %w", err)
	}

	if err := a.runs.UpdateRunStatus(ctx, run.ID, crawler.RunStatusRunning, "", crawler.Stats{}); err != nil {
		return crawler.Result{}, fmt.Errorf("mark run running: %w", err)
	}

	result, err := driver.Run(ctx)
	if err != nil {
		uerr := a.runs.UpdateRunStatus(ctx, run.ID, crawler.RunStatusFailed, err.Error(), result.Stats)
		if uerr != nil {
			a.logger.Warn("failed to record run failure", zap.Error(uerr))
		}
		return result, fmt.Errorf("run crawl: %w", err)
	}

	if err := a.indexer.Index(ctx, run.ID, result); err != nil {
		uerr := a.runs.UpdateRunStatus(ctx, run.ID, crawler.RunStatusFailed, err.Error(), result.Stats)
		if uerr != nil {
			a.logger.Warn("failed to record run failure", zap.Error(uerr))
		}
		return result, fmt.Errorf("index crawl result: %w", err)
	}

	status := crawler.RunStatusSucceeded
	if ctx.Err() != nil {
		status = crawler.RunStatusCanceled
	}
	if err := a.runs.SetResult(ctx, run.ID, result); err != nil {
		a.logger.Warn("failed to store crawl result", zap.Error(err))
	}
	if err := a.runs.UpdateRunStatus(ctx, run.ID, status, "", result.Stats); err != nil {
		a.logger.Warn("failed to record run completion", zap.Error(err))
	}
	return result, nil
}

// StartCrawl launches a crawl in the background, satisfying api.Runner.
func (a *App) StartCrawl(_ context.Context, run crawler.Run) error {
	ctx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	a.cancels[run.ID] = cancel
	a.mu.Unlock()

	go func() {
		defer func() {
			a.mu.Lock()
			delete(a.cancels, run.ID)
			a.mu.Unlock()
			cancel()
		}()
		if _, err := a.Crawl(ctx, run); err != nil {
			a.logger.Error("background crawl failed",
				zap.String("run_id", run.ID),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// CancelRun cancels an active background crawl, satisfying api.Runner.
func (a *App) CancelRun(runID string) bool {
	a.mu.Lock()
	cancel, ok := a.cancels[runID]
	a.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// Close gracefully shuts down all services in the container.
func (a *App) Close(ctx context.Context) {
	if err := a.hub.Close(ctx); err != nil {
		a.logger.Warn("error closing progress hub", zap.Error(err))
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("error closing pubsub client", zap.Error(err))
		}
	}
	a.pgPages.Close()
	_ = a.logger.Sync()
}
