// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/config"
	"github.com/2448334/seimas-scraper/internal/crawler"
	"github.com/2448334/seimas-scraper/internal/dispatcher"
	"github.com/2448334/seimas-scraper/internal/documents"
	collyfetcher "github.com/2448334/seimas-scraper/internal/fetcher/colly"
	"github.com/2448334/seimas-scraper/internal/id/uuid"
	"github.com/2448334/seimas-scraper/internal/ingest"
	"github.com/2448334/seimas-scraper/internal/metrics"
	"github.com/2448334/seimas-scraper/internal/pipeline"
	"github.com/2448334/seimas-scraper/internal/policy/ratelimit"
	pubmemory "github.com/2448334/seimas-scraper/internal/publisher/memory"
	"github.com/2448334/seimas-scraper/internal/publisher/pubsub"
	"github.com/2448334/seimas-scraper/internal/stage"
	"github.com/2448334/seimas-scraper/internal/storage/gcs"
	"github.com/2448334/seimas-scraper/internal/storage/local"
	"github.com/2448334/seimas-scraper/internal/storage/memory"
	"github.com/2448334/seimas-scraper/internal/storage/postgres"
)

// Crawler is the set of crawl entry points exposed to commands.
type Crawler interface {
	All(ctx context.Context) error
	Parliament(ctx context.Context, parliamentID int32) error
	Documents(ctx context.Context, parliamentID int32) error
	AllDocuments(ctx context.Context) error
	Stage(ctx context.Context, name string, mode pipeline.Mode) error
}

type migrator interface {
	Migrate(ctx context.Context) error
}

// App holds the shared services of one process invocation.
type App struct {
	logger    *zap.Logger
	store     crawler.Store
	blobs     crawler.BlobStore
	publisher crawler.Publisher
	crawler   *pipeline.Pipeline
	metrics   *metrics.Server
	closers   []func() error
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetCrawler returns the crawl pipeline.
func (a *App) GetCrawler() Crawler {
	return a.crawler
}

// GetStore exposes the record store.
func (a *App) GetStore() crawler.Store {
	return a.store
}

// GetBlobStore exposes the document store.
func (a *App) GetBlobStore() crawler.BlobStore {
	return a.blobs
}

// Migrate applies the database schema. The in-memory store needs none.
func (a *App) Migrate(ctx context.Context) error {
	m, ok := a.store.(migrator)
	if !ok {
		a.logger.Info("record store has no schema to migrate")
		return nil
	}
	if err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.logger.Info("schema applied")
	return nil
}

// NewApp builds every service from cfg, failing fast when one cannot be initialized.
// Services created before a failure are closed again.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	logger.Info("initializing application services")

	switch cfg.DB.Provider {
	case config.ProviderPostgres:
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:             cfg.DB.DSN,
			Schema:          cfg.DB.Schema,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: cfg.ConnLifetime(),
		}, logger.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("init record store: %w", err)
		}
		a.store = store
	case config.ProviderMemory:
		logger.Info("using in-memory record store; nothing will be persisted")
		a.store = memory.NewRecordStore()
	default:
		return nil, fmt.Errorf("unknown db provider %q", cfg.DB.Provider)
	}
	a.closers = append(a.closers, func() error { a.store.Close(); return nil })

	switch cfg.Documents.Provider {
	case config.ProviderLocal:
		blobs, err := local.New(local.Config{BaseDir: cfg.Documents.Dir})
		if err != nil {
			return nil, fmt.Errorf("init document store: %w", err)
		}
		a.blobs = blobs
	case config.ProviderGCS:
		blobs, closeFn, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.Documents.GCSBucket, Prefix: cfg.Documents.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init document store: %w", err)
		}
		a.blobs = blobs
		a.closers = append(a.closers, closeFn)
	case config.ProviderMemory:
		a.blobs = memory.NewBlobStore()
	default:
		return nil, fmt.Errorf("unknown documents provider %q", cfg.Documents.Provider)
	}

	if cfg.PubSub.ProjectID != "" {
		pub, closeFn, err := pubsub.Open(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			return nil, fmt.Errorf("init publisher: %w", err)
		}
		a.publisher = pub
		a.closers = append(a.closers, closeFn)
	} else {
		a.publisher = pubmemory.New()
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.FetchTimeout(),
		MaxBodySize: cfg.HTTP.MaxBodyBytes,
		Limiter: ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
			Burst:             cfg.HTTP.Burst,
		}),
	}, logger)

	downloader, err := documents.New(documents.Config{
		SourceURL:  cfg.Documents.SourceURL,
		ScratchDir: cfg.Documents.ScratchDir,
	}, fetcher, a.blobs, documents.LibreOffice{
		Binary:  cfg.Documents.Converter,
		Timeout: cfg.ConvertTimeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init documents: %w", err)
	}

	feeds := stage.New(cfg.Feeds.BaseURL, fetcher, a.store, ingest.New(logger), logger)
	a.crawler, err = pipeline.New(pipeline.Config{
		SkipPopulatedSessions: cfg.Crawler.SkipPopulatedSessions,
		DocumentChunkSize:     cfg.Crawler.DocumentChunkSize,
	}, pipeline.Deps{
		Feeds:     feeds,
		Store:     a.store,
		Documents: downloader,
		Runner:    dispatcher.New(cfg.Crawler.ChunkSize, logger),
		Publisher: a.publisher,
		IDs:       uuid.New(),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewServer(cfg.Metrics.Addr, logger.Named("metrics"))
		a.metrics.Start()
	}

	logger.Info("application services initialized",
		zap.String("db", cfg.DB.Provider),
		zap.String("documents", cfg.Documents.Provider),
	)
	return a, nil
}

// Close shuts down every service in reverse order of creation.
func (a *App) Close() {
	var err error
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = multierr.Append(err, a.metrics.Shutdown(ctx))
		cancel()
		a.metrics = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	if err != nil {
		a.logger.Warn("error shutting down services", zap.Error(err))
	}
	_ = a.logger.Sync()
}
