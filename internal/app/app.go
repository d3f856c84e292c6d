// Package app initializes and holds long-lived application services, acting as a dependency
// injection container for the commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/config"
	"github.com/JakeFAU/listing-extractor/internal/progress"
	"github.com/JakeFAU/listing-extractor/internal/publisher"
	pubsubpublisher "github.com/JakeFAU/listing-extractor/internal/publisher/pubsub"
	"github.com/JakeFAU/listing-extractor/internal/storage"
	"github.com/JakeFAU/listing-extractor/internal/storage/gcs"
	"github.com/JakeFAU/listing-extractor/internal/storage/local"
	"github.com/JakeFAU/listing-extractor/internal/storage/memory"
	"github.com/JakeFAU/listing-extractor/internal/storage/postgres"
)

// App holds the shared services for one command invocation.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Documents storage.DocumentStore
	Blobs     storage.BlobStore
	Publisher publisher.Publisher
	Progress  *progress.Tracker

	closers []func() error
}

// New initializes every service named by cfg. It fails fast: a service that cannot be
// initialized closes the ones already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Initializing application services...")
	a := &App{Config: cfg, Logger: logger, Progress: progress.NewTracker(logger.Named("progress"))}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// 1. Document store: where listing records are inserted and later labeled.
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		logger.Info("Connecting to PostgreSQL...", zap.String("table", cfg.Storage.Postgres.Table))
		store, err := postgres.NewDocumentStore(ctx, cfg.Storage.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize document store: %w", err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare document store: %w", err)
		}
		a.Documents = store
	case config.StorageMemory:
		logger.Info("Using in-memory document store. Records are lost on exit.")
		a.Documents = memory.NewDocumentStore()
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}

	// 2. Blob store: where run reports and zone results are exported.
	switch cfg.Export.Backend {
	case config.ExportGCS:
		logger.Info("Using GCS export store", zap.String("bucket", cfg.Export.GCS.Bucket))
		blobs, err := gcs.Open(ctx, cfg.Export.GCS, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize export store: %w", err)
		}
		a.closers = append(a.closers, blobs.Close)
		a.Blobs = blobs
	case config.ExportLocal:
		logger.Info("Using local export store", zap.String("dir", cfg.Export.Local.BaseDir))
		blobs, err := local.New(cfg.Export.Local)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize export store: %w", err)
		}
		a.Blobs = blobs
	case config.ExportNone:
		logger.Info("Using No-Op export store. Exports will be discarded.")
		a.Blobs = storage.NoOpBlobStore{}
	default:
		return nil, fmt.Errorf("unknown export backend: %s", cfg.Export.Backend)
	}

	// 3. Publisher: announces finished runs.
	if cfg.PubSub.TopicID == "" {
		logger.Info("Using No-Op publisher. No messages will be sent.")
		a.Publisher = publisher.Nop{}
	} else {
		logger.Info("Connecting to GCP Pub/Sub", zap.String("topic", cfg.PubSub.TopicID))
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize pubsub client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		pub, err := pubsubpublisher.Open(ctx, client, cfg.PubSub.TopicID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize publisher: %w", err)
		}
		a.closers = append(a.closers, func() error { pub.Stop(); return nil })
		a.Publisher = pub
	}

	logger.Info("Application services initialized successfully.")
	return a, nil
}

// Close shuts services down in reverse order of initialization.
func (a *App) Close() {
	a.Logger.Info("Shutting down application services...")
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("Error closing application services", zap.Error(err))
	}
}
