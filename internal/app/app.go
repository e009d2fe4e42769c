// Package app initializes and holds long-lived harvester services, acting as
// a dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/critic-review-crawler/internal/api"
	"github.com/JakeFAU/critic-review-crawler/internal/clock/system"
	"github.com/JakeFAU/critic-review-crawler/internal/config"
	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
	"github.com/JakeFAU/critic-review-crawler/internal/dataset"
	"github.com/JakeFAU/critic-review-crawler/internal/failures"
	collyfetcher "github.com/JakeFAU/critic-review-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/critic-review-crawler/internal/id/uuid"
	"github.com/JakeFAU/critic-review-crawler/internal/listing"
	"github.com/JakeFAU/critic-review-crawler/internal/metrics"
	"github.com/JakeFAU/critic-review-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/critic-review-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/critic-review-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/critic-review-crawler/internal/storage/gcs"
	"github.com/JakeFAU/critic-review-crawler/internal/storage/local"
	memstore "github.com/JakeFAU/critic-review-crawler/internal/storage/memory"
	"github.com/JakeFAU/critic-review-crawler/internal/storage/postgres"
	"github.com/JakeFAU/critic-review-crawler/internal/storage/sqlite"
)

// App holds the shared services for one CLI invocation.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	clock    crawler.Clock
	ids      crawler.IDGenerator
	progress *crawler.Progress
	history  *memory.Publisher
	datasets *memstore.BlobStore
	tracker  *failures.FileTracker
	local    *local.BlobStore
	discover *crawler.Discoverer
	reviews  *crawler.ReviewFetcher
	sinks    []crawler.DatasetSink
	notifier crawler.Notifier
	closers  []func() error
}

// New builds every service the configuration asks for. Optional sinks (Postgres,
// SQLite, GCS) and the Pub/Sub notifier are only created when configured.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	a := &App{
		cfg:      cfg,
		logger:   logger,
		clock:    system.New(),
		ids:      uuid.New(),
		progress: crawler.NewProgress(),
		history:  memory.New(),
		datasets: memstore.NewBlobStore(),
	}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg

	store, err := local.New(local.Config{
		BaseDir:     cfg.Output.Dir,
		CriticsFile: cfg.Output.CriticsFile,
		ReviewsFile: cfg.Output.ReviewsFile,
	})
	if err != nil {
		return fmt.Errorf("init output dir: %w", err)
	}
	a.local = store
	a.sinks = append(a.sinks, store, a.datasets)

	tracker, err := failures.NewFileTracker(cfg.Output.FailedCriticsPath())
	if err != nil {
		return fmt.Errorf("init failure log: %w", err)
	}
	a.tracker = tracker
	a.closers = append(a.closers, tracker.Close)

	limiter := ratelimit.New(ratelimit.Config{
		Delay:        cfg.Crawler.Delay,
		MaxPerMinute: cfg.Crawler.MaxRequestsPerMinute,
	})
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		Timeout:       cfg.HTTP.Timeout,
		MaxRedirects:  cfg.HTTP.MaxRedirects,
		RespectRobots: cfg.Crawler.RespectRobots,
	}, limiter, a.logger.Named("fetcher"))

	a.discover = crawler.NewDiscoverer(fetcher, listing.NewParser(), cfg.Crawler.BaseURL, a.logger.Named("discovery"))
	a.reviews = crawler.NewReviewFetcher(fetcher, tracker, crawler.ReviewFetcherConfig{
		BaseURL:       cfg.Crawler.BaseURL,
		MaxEmptyPages: cfg.Crawler.MaxEmptyPages,
	}, a.logger.Named("reviews"))

	if cfg.SQLite.Path != "" {
		db, err := sqlite.Open(ctx, cfg.SQLite.Path, a.clock)
		if err != nil {
			return fmt.Errorf("init sqlite sink: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.sinks = append(a.sinks, db)
		a.logger.Info("sqlite sink enabled", zap.String("path", cfg.SQLite.Path))
	}

	if cfg.DB.DSN != "" {
		pg, err := postgres.NewReviewStore(ctx, postgres.ReviewStoreConfig{
			DSN:             cfg.DB.DSN,
			Table:           cfg.DB.Table,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: cfg.DB.MaxConnLifetime,
		}, a.clock)
		if err != nil {
			return fmt.Errorf("init postgres sink: %w", err)
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		a.sinks = append(a.sinks, pg)
		a.logger.Info("postgres sink enabled", zap.String("table", cfg.DB.Table))
	}

	if cfg.Storage.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		blob, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.Prefix})
		if err != nil {
			return fmt.Errorf("init gcs sink: %w", err)
		}
		a.sinks = append(a.sinks, blob)
		a.logger.Info("gcs sink enabled", zap.String("bucket", cfg.Storage.GCSBucket))
	}

	notifiers := Notifiers{a.history}
	if cfg.PubSub.TopicName != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		pubsubpublisher.InstallPropagator()
		pub := pubsubpublisher.New(client.Topic(cfg.PubSub.TopicName))
		a.closers = append(a.closers, func() error { pub.Stop(); return nil })
		notifiers = append(notifiers, pub)
		a.logger.Info("pubsub notifications enabled", zap.String("topic", cfg.PubSub.TopicName))
	}
	a.notifier = notifiers
	return nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Local returns the output-directory store.
func (a *App) Local() *local.BlobStore { return a.local }

// Progress returns the live run progress.
func (a *App) Progress() *crawler.Progress { return a.progress }

// History returns the in-process record of finished runs.
func (a *App) History() *memory.Publisher { return a.history }

// Datasets returns the in-process copy of each run's dataset.
func (a *App) Datasets() *memstore.BlobStore { return a.datasets }

// Engine returns the pipeline that writes the critic list and the main
// dataset to every configured sink.
func (a *App) Engine() *crawler.Engine {
	return a.newEngine(a.local, a.sinks)
}

// RetryEngine returns a pipeline whose only sink is the retry dataset file
// in the output directory.
func (a *App) RetryEngine() (*crawler.Engine, error) {
	store, err := local.New(local.Config{
		BaseDir:     a.cfg.Output.Dir,
		CriticsFile: a.cfg.Output.CriticsFile,
		ReviewsFile: a.cfg.Output.RetryReviewsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("init retry output: %w", err)
	}
	return a.newEngine(nil, []crawler.DatasetSink{store, a.datasets}), nil
}

func (a *App) newEngine(critics crawler.CriticListWriter, sinks []crawler.DatasetSink) *crawler.Engine {
	return crawler.NewEngine(
		a.discover,
		a.reviews,
		a.tracker,
		dataset.Assembler{},
		critics,
		sinks,
		a.notifier,
		a.clock,
		a.ids,
		a.progress,
		a.logger.Named("engine"),
	)
}

// ServeStatus runs the status server until ctx is canceled. It returns
// immediately when no server address is configured.
func (a *App) ServeStatus(ctx context.Context) error {
	if a.cfg.Server.Addr == "" {
		return nil
	}
	handler := api.NewProgressHandler(a.progress, a.history, a.datasets, a.logger.Named("api"))
	return api.NewServer(handler, a.logger.Named("api")).ListenAndServe(ctx, a.cfg.Server.Addr)
}

// FlushMetrics writes the Prometheus textfile when one is configured.
func (a *App) FlushMetrics() error {
	if a.cfg.Metrics.Textfile == "" {
		return nil
	}
	return metrics.WriteTextfile(a.cfg.Metrics.Textfile)
}

// Close releases every service in reverse order of creation.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error shutting down services", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// Notifiers fans a run summary out to several notifiers. The returned id is
// the last non-empty id; errors are joined.
type Notifiers []crawler.Notifier

// Notify implements crawler.Notifier.
func (n Notifiers) Notify(ctx context.Context, summary crawler.RunSummary) (string, error) {
	var (
		id   string
		errs []error
	)
	for _, notifier := range n {
		got, err := notifier.Notify(ctx, summary)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if got != "" {
			id = got
		}
	}
	return id, errors.Join(errs...)
}
