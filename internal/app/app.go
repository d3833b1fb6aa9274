package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"RssDigest/internal/config"
	"RssDigest/internal/infrastructure/emit"
	"RssDigest/internal/infrastructure/llm"
	"RssDigest/internal/infrastructure/ml"
	"RssDigest/internal/infrastructure/readability"
	"RssDigest/internal/infrastructure/rss"
	"RssDigest/internal/infrastructure/scheduler"
	"RssDigest/internal/infrastructure/storage"
	"RssDigest/internal/infrastructure/telegram"
	"RssDigest/internal/logging"
	"RssDigest/internal/ports"
	"RssDigest/internal/usecase"
)

// ErrMissingAPIKey is the fatal configuration error for an absent digest
// credential, detected before any network call is attempted.
var ErrMissingAPIKey = errors.New("digest API key missing (set MISTRAL_API_KEY)")

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	repository *storage.SQLiteRepository
	pipeline   *usecase.Pipeline
	scheduler  *usecase.Scheduler
}

// New builds a runnable application instance. Configuration errors and an
// unreachable store abort construction before any pipeline side effects.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithFile(cfg.Logging.Level, cfg.Logging.File)
	}

	if cfg.Digest.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	repository, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	fetcher := rss.NewFetcher(nil, cfg.Feeds, cfg.Fetch, baseLogger.With("component", "fetcher"))

	var extractor ports.ContentExtractor
	if cfg.Fetch.ExtractContent {
		extractor = readability.NewExtractor(cfg.Fetch.Timeout(), baseLogger.With("component", "extractor"))
	}

	var summarizer ports.Summarizer
	if cfg.Summarizer.InferenceURL != "" {
		summarizer = ml.NewClient(cfg.Summarizer)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:       fetcher,
		Articles:     repository,
		Digests:      repository,
		Extractor:    extractor,
		Summarizer:   summarizer,
		DigestClient: llm.NewMistralClient(cfg.Digest, baseLogger.With("component", "digest")),
		Emitter:      emit.NewMarkdownEmitter(cfg.Digest.OutputDir),
		Notifier:     notifier,
		Logger:       baseLogger.With("component", "pipeline"),
		Options: usecase.PipelineOptions{
			SummaryMaxLength: cfg.Summarizer.MaxLength,
			SummaryMinLength: cfg.Summarizer.MinLength,
			MinBodyChars:     cfg.Fetch.MinBodyChars,
			Workers:          cfg.Fetch.Workers,
			WindowDays:       cfg.Digest.WindowDays,
			DigestAlways:     cfg.Digest.Always,
		},
	})

	application := &Application{
		cfg:        cfg,
		logger:     baseLogger,
		repository: repository,
		pipeline:   pipeline,
	}

	if cfg.Scheduler.Enabled {
		driver, err := scheduler.NewCronScheduler(
			cfg.Scheduler.CronExpression,
			cfg.Scheduler.Location(),
			baseLogger.With("component", "scheduler"),
		)
		if err != nil {
			repository.Close()
			return nil, err
		}
		application.scheduler = usecase.NewScheduler(driver, pipeline)
	}

	return application, nil
}

// Run performs a single pipeline execution, or blocks on the cron schedule
// in daemon mode.
func (a *Application) Run(ctx context.Context) error {
	defer a.repository.Close()

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		<-ctx.Done()
		return a.scheduler.Stop(context.Background())
	}

	now := time.Now().In(a.cfg.Scheduler.Location())
	report, err := a.pipeline.Run(ctx, now)

	a.logger.Info("run finished",
		"fetched", report.Fetched,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"discarded", report.Discarded,
		"stale", report.Stale,
		"summarized", report.Summarized,
		"summary_failures", report.SummaryFailures,
		"summary_skipped", report.SummarySkipped,
		"feed_failures", len(report.FeedFailures),
		"digest", report.DigestStatus,
		"digest_path", report.DigestPath,
	)

	return err
}
