// Package server builds the crawl application from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/api"
	"github.com/JakeFAU/quotes-crawler/internal/clock/system"
	"github.com/JakeFAU/quotes-crawler/internal/config"
	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/quotes-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/quotes-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/quotes-crawler/internal/headless/detector"
	"github.com/JakeFAU/quotes-crawler/internal/id/uuid"
	"github.com/JakeFAU/quotes-crawler/internal/logging"
	"github.com/JakeFAU/quotes-crawler/internal/metrics"
	"github.com/JakeFAU/quotes-crawler/internal/output"
	"github.com/JakeFAU/quotes-crawler/internal/publisher"
	memorypublisher "github.com/JakeFAU/quotes-crawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/quotes-crawler/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/quotes-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/quotes-crawler/internal/storage/local"
	pgstore "github.com/JakeFAU/quotes-crawler/internal/storage/postgres"
	"github.com/JakeFAU/quotes-crawler/internal/telemetry"
)

// ResultSaver persists a finished crawl.
type ResultSaver interface {
	SaveResult(ctx context.Context, result crawler.CrawlResult) error
}

// Option overrides a dependency Build would otherwise derive from config.
type Option func(*App)

// WithLogger uses logger instead of building one from config.
func WithLogger(logger *zap.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithFetcher replaces the configured PageFetcher.
func WithFetcher(f crawler.PageFetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithBlobStore replaces the configured output destination.
func WithBlobStore(s output.BlobStore) Option {
	return func(a *App) { a.blobs = s }
}

// WithResultSaver replaces the Postgres result store.
func WithResultSaver(s ResultSaver) Option {
	return func(a *App) { a.results = s }
}

// WithPublisher replaces the completion publisher.
func WithPublisher(p publisher.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithSpanExporter sends finished spans to exp.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(a *App) { a.spanExporter = exp }
}

// WithVersion tags telemetry with the build version.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithStdout sets the stream used when output.dir is "-".
func WithStdout(w io.Writer) Option {
	return func(a *App) { a.stdout = w }
}

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	recorder  *metrics.Recorder
	apiServer *api.Server
	engine    *crawler.Engine
	fetcher   crawler.PageFetcher
	blobs     output.BlobStore
	results   ResultSaver
	publisher publisher.Publisher
	stdout    io.Writer
	version   string

	spanExporter   sdktrace.SpanExporter
	tracerProvider *sdktrace.TracerProvider
	headless       *headlessfetcher.Fetcher
	storage        *storage.Client
	resultStore    *pgstore.ResultStore
	pubsubClient   *pubsub.Client
	pubsubPub      *gcppublisher.Publisher
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	app := &App{cfg: cfg, stdout: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		logger, err := logging.New(logging.Options{
			Development: cfg.Logging.Development,
			Level:       cfg.Logging.Level,
		})
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		app.logger = logger
	}
	app.logger.Info("building application dependencies",
		zap.String("start_url", cfg.Crawler.StartURL),
		zap.String("fetcher", cfg.Fetcher.Mode),
		zap.Int("author_concurrency", cfg.Crawler.AuthorConcurrency),
	)

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Options{
		ServiceVersion: app.version,
		Exporter:       app.spanExporter,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerProvider = tp

	app.recorder = metrics.NewRecorder(nil)
	app.apiServer = api.NewServer(app.recorder, app.logger)

	steps := []func(context.Context) error{
		app.setupFetcher,
		app.setupStorage,
		app.setupDatabase,
		app.setupPublisher,
		app.setupEngine,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			app.Close(ctx)
			return nil, err
		}
	}
	return app, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Handler exposes the operator HTTP routes.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

func (a *App) setupFetcher(_ context.Context) error {
	if a.fetcher != nil {
		return nil
	}
	switch a.cfg.Fetcher.Mode {
	case config.FetcherHeadless:
		f, err := a.newHeadless()
		if err != nil {
			return err
		}
		a.fetcher = f
		a.logger.Info("using headless fetcher", zap.Int("max_parallel", a.cfg.Fetcher.Headless.MaxParallel))
	case config.FetcherAuto:
		probe, err := a.newColly()
		if err != nil {
			return err
		}
		headless, err := a.newHeadless()
		if err != nil {
			return err
		}
		a.fetcher, err = detector.NewPromotingFetcher(
			probe,
			headless,
			detector.NewHeuristic(a.cfg.Fetcher.Headless.PromotionThreshold, a.cfg.Selectors.Quote, a.cfg.Selectors.FullName),
			a.logger.Named("detector"),
		)
		if err != nil {
			return fmt.Errorf("promoting fetcher init failed: %w", err)
		}
		a.logger.Info("using colly fetcher with headless promotion",
			zap.Int("promotion_threshold", a.cfg.Fetcher.Headless.PromotionThreshold),
		)
	default:
		f, err := a.newColly()
		if err != nil {
			return err
		}
		a.fetcher = f
		a.logger.Info("using colly fetcher", zap.String("user_agent", a.cfg.Crawler.UserAgent))
	}
	return nil
}

func (a *App) newColly() (*collyfetcher.Fetcher, error) {
	origin, err := a.cfg.CrawlerConfig().Origin()
	if err != nil {
		return nil, err
	}
	return collyfetcher.New(collyfetcher.Config{
		UserAgent:   a.cfg.Crawler.UserAgent,
		Timeout:     a.cfg.RequestTimeout(),
		Headers:     a.cfg.RequestHeaders(),
		AllowedHost: origin.Hostname(),
	}), nil
}

func (a *App) newHeadless() (*headlessfetcher.Fetcher, error) {
	f, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       a.cfg.Fetcher.Headless.MaxParallel,
		UserAgent:         a.cfg.Crawler.UserAgent,
		Headers:           a.cfg.RequestHeaders(),
		NavigationTimeout: a.cfg.NavTimeout(),
		WaitSelector:      a.cfg.Fetcher.Headless.WaitSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	a.headless = f
	return f, nil
}

func (a *App) setupStorage(ctx context.Context) error {
	if a.blobs != nil {
		return nil
	}
	switch {
	case a.cfg.Storage.GCSBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storage = client
		a.blobs, err = gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("using GCS storage backend",
			zap.String("bucket", a.cfg.Storage.GCSBucket),
			zap.String("prefix", a.cfg.Storage.Prefix),
		)
	case a.cfg.WritesToStdout():
		a.blobs = output.NewStreamStore(a.stdout)
		a.logger.Info("writing documents to stdout")
	default:
		store, err := localstorage.New(a.cfg.Output.Dir)
		if err != nil {
			return fmt.Errorf("local blob store init failed: %w", err)
		}
		a.blobs = store
		a.logger.Info("using local storage backend", zap.String("dir", a.cfg.Output.Dir))
	}
	return nil
}

func (a *App) setupDatabase(ctx context.Context) error {
	if a.results != nil {
		return nil
	}
	if a.cfg.DB.DSN == "" {
		a.logger.Debug("no DSN specified, skipping result store")
		return nil
	}
	store, err := pgstore.NewResultStore(ctx, pgstore.Config{
		DSN:          a.cfg.DB.DSN,
		QuotesTable:  a.cfg.DB.QuotesTable,
		AuthorsTable: a.cfg.DB.AuthorsTable,
		MaxConns:     a.cfg.DB.MaxConns,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("result store init failed: %w", err)
	}
	a.resultStore = store
	a.results = store
	a.apiServer.AddReadinessCheck("postgres", store.Ping)
	a.logger.Info("result store initialized",
		zap.String("quotes_table", a.cfg.DB.QuotesTable),
		zap.String("authors_table", a.cfg.DB.AuthorsTable),
	)
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.publisher != nil {
		return nil
	}
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Debug("no Pub/Sub topic configured, using in-memory publisher")
		a.publisher = memorypublisher.New()
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.pubsubPub = gcppublisher.New(client)
	a.publisher = a.pubsubPub
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

func (a *App) setupEngine(_ context.Context) error {
	engine, err := crawler.NewEngine(
		a.cfg.CrawlerConfig(),
		a.fetcher,
		uuid.New(),
		system.New(),
		a.recorder,
		a.logger.Named("crawler"),
	)
	if err != nil {
		return fmt.Errorf("crawl engine init failed: %w", err)
	}
	a.engine = engine
	return nil
}

// Run performs one crawl, stores both documents, persists the result when a
// database is configured and announces completion. The metrics listener, when
// configured, serves for the duration of the call.
func (a *App) Run(ctx context.Context) (crawler.CrawlResult, error) {
	stopServer := a.serveMetrics()
	defer stopServer()

	ctx, span := telemetry.Tracer().Start(ctx, "crawl")
	defer span.End()

	a.apiServer.CrawlStarted()
	result, err := a.engine.Run(ctx)
	a.recorder.ObserveRun(result, err)
	span.SetAttributes(
		attribute.String("crawl.id", result.CrawlID),
		attribute.Int("crawl.pages", result.PagesWalked),
		attribute.Int("crawl.quotes", len(result.Records)),
		attribute.Int("crawl.authors", len(result.Authors)),
		attribute.Int("crawl.author_failures", len(result.Failures)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "crawl failed")
		a.apiServer.CrawlFinished(publisher.NewCrawlCompleted(result, nil), err)
		return result, err
	}

	summary, err := a.deliver(ctx, result)
	a.apiServer.CrawlFinished(summary, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		return result, err
	}
	if len(result.Failures) > 0 {
		a.logger.Warn("crawl finished with author failures",
			zap.String("crawl_id", result.CrawlID),
			zap.Int("failures", len(result.Failures)),
		)
	}
	return result, nil
}

func (a *App) deliver(ctx context.Context, result crawler.CrawlResult) (publisher.CrawlCompleted, error) {
	logger := a.logger.With(zap.String("crawl_id", result.CrawlID))
	writer := output.NewWriter(a.blobs, output.Config{
		QuotesName:  a.cfg.Output.QuotesName,
		AuthorsName: a.cfg.Output.AuthorsName,
		Prefix:      a.objectPrefix(result.CrawlID),
	}, logger.Named("output"))

	ctx, span := telemetry.Tracer().Start(ctx, "deliver")
	defer span.End()

	objects, err := writer.Write(ctx, result)
	summary := publisher.NewCrawlCompleted(result, objects)
	if err != nil {
		return summary, fmt.Errorf("write output: %w", err)
	}

	if a.results != nil {
		if err := a.results.SaveResult(ctx, result); err != nil {
			return summary, fmt.Errorf("save result: %w", err)
		}
	}

	if a.publisher != nil {
		msgID, err := a.publisher.Publish(ctx, a.cfg.PubSub.TopicName, summary)
		if err != nil {
			return summary, fmt.Errorf("publish completion: %w", err)
		}
		logger.Debug("completion published", zap.String("message_id", msgID))
	}
	return summary, nil
}

func (a *App) objectPrefix(crawlID string) string {
	if a.cfg.Storage.GCSBucket == "" {
		return ""
	}
	return path.Join(a.cfg.Storage.Prefix, crawlID)
}

func (a *App) serveMetrics() func() {
	if a.cfg.Server.MetricsAddr == "" {
		return func() {}
	}
	srv := &http.Server{
		Addr:              a.cfg.Server.MetricsAddr,
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("metrics server started", zap.String("addr", a.cfg.Server.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics server shutdown error", zap.Error(err))
		}
	}
}

// Close releases every client Build opened.
func (a *App) Close(ctx context.Context) {
	if a.headless != nil {
		a.headless.Close()
	}
	if a.pubsubPub != nil {
		a.pubsubPub.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.resultStore != nil {
		a.resultStore.Close()
	}
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
