// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/castcrawler/internal/config"
	"github.com/JakeFAU/castcrawler/internal/publisher"
	memorypublisher "github.com/JakeFAU/castcrawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/castcrawler/internal/publisher/pubsub"
	"github.com/JakeFAU/castcrawler/internal/storage"
	"github.com/JakeFAU/castcrawler/internal/storage/csvfile"
	"github.com/JakeFAU/castcrawler/internal/storage/gcs"
	"github.com/JakeFAU/castcrawler/internal/storage/local"
	storagememory "github.com/JakeFAU/castcrawler/internal/storage/memory"
	"github.com/JakeFAU/castcrawler/internal/storage/postgres"
	"github.com/JakeFAU/castcrawler/internal/storage/sqlite"
	"github.com/JakeFAU/castcrawler/internal/telemetry"
)

// Version is reported as the service version on exported spans. It is set at
// build time with -ldflags "-X github.com/JakeFAU/castcrawler/internal/app.Version=...".
var Version = "dev"

const telemetryFlushTimeout = 5 * time.Second

// App holds the shared, long-lived services for one CLI invocation: the
// logger, the credit store, the artifact blob store and the run publisher.
// It is built once in the root command and handed to subcommands through
// the command context.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     storage.Store
	blobs     storage.BlobStore
	publisher publisher.Publisher
	closers   []func() error
}

// GetConfig returns the configuration the services were built from.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetStore exposes the configured credit store.
func (a *App) GetStore() storage.Store {
	return a.store
}

// GetBlobs exposes the artifact blob store used for plots and reports.
func (a *App) GetBlobs() storage.BlobStore {
	return a.blobs
}

// GetPublisher returns the publisher used to announce finished runs.
func (a *App) GetPublisher() publisher.Publisher {
	return a.publisher
}

// New creates the services selected by cfg. It fails fast if any of them
// cannot be initialized and releases whatever was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	logger.Info("Initializing application services...")

	shutdownTracing, err := telemetry.Init(cfg.Telemetry, Version, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		return shutdownTracing(ctx)
	})

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.store = store
	blobs, err := a.openBlobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifacts: %w", err)
	}
	a.blobs = blobs
	pub, err := a.openPublisher(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize publisher: %w", err)
	}
	a.publisher = pub

	logger.Info("Application services initialized successfully.")
	return a, nil
}

// NewWithServices assembles an App from already constructed services.
func NewWithServices(
	cfg config.Config,
	logger *zap.Logger,
	store storage.Store,
	blobs storage.BlobStore,
	pub publisher.Publisher,
) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		blobs:     blobs,
		publisher: pub,
	}
}

func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	sc := a.cfg.Storage
	switch sc.Driver {
	case "csv":
		a.logger.Info("Using CSV credit store", zap.String("path", sc.CSVPath))
		return csvfile.New(sc.CSVPath, a.logger)
	case "sqlite":
		a.logger.Info("Using SQLite credit store", zap.String("path", sc.SQLitePath))
		return sqlite.Open(ctx, sc.SQLitePath, a.logger)
	case "postgres":
		a.logger.Info("Connecting to PostgreSQL...", zap.String("table", sc.PostgresTable))
		return postgres.New(ctx, postgres.Config{
			DSN:   sc.PostgresDSN,
			Table: sc.PostgresTable,
		})
	case "memory":
		a.logger.Info("Using in-memory credit store. Credits will be discarded on exit.")
		return storagememory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", sc.Driver)
	}
}

func (a *App) openBlobs(ctx context.Context) (storage.BlobStore, error) {
	ac := a.cfg.Artifacts
	switch ac.Backend {
	case "local":
		a.logger.Info("Writing artifacts to local disk", zap.String("dir", ac.LocalDir))
		return local.New(local.Config{BaseDir: ac.LocalDir})
	case "gcs":
		a.logger.Info("Writing artifacts to GCS", zap.String("bucket", ac.GCSBucket))
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return gcs.New(client, gcs.Config{Bucket: ac.GCSBucket, Prefix: ac.Prefix})
	case "memory":
		a.logger.Info("Keeping artifacts in memory.")
		return storagememory.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown artifacts backend: %s", ac.Backend)
	}
}

func (a *App) openPublisher(ctx context.Context) (publisher.Publisher, error) {
	pc := a.cfg.PubSub
	if !pc.Enabled() {
		a.logger.Info("Pub/Sub not configured. Run events stay in memory.")
		return memorypublisher.New(a.logger), nil
	}
	a.logger.Info("Connecting to GCP Pub/Sub", zap.String("project", pc.ProjectID), zap.String("topic", pc.Topic))
	pub, client, err := pubsubpublisher.Dial(ctx, pc.ProjectID, pc.Topic)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		pub.Stop()
		return client.Close()
	})
	return pub, nil
}

// Close shuts down every service in the container. It is called by a Cobra
// hook after the command finishes and is safe to call more than once.
func (a *App) Close() error {
	a.logger.Info("Shutting down application services...")
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Error closing credit store", zap.Error(err))
			errs = append(errs, err)
		}
		a.store = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Error closing service", zap.Error(err))
			errs = append(errs, err)
		}
	}
	a.closers = nil
	// Sync fails on terminals (ENOTTY); there is nothing useful to do about it.
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
