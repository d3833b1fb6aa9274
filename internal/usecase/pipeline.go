package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"RssDigest/internal/domain"
	"RssDigest/internal/ports"
)

// PipelineOptions carries the tunables the orchestrator needs from config.
type PipelineOptions struct {
	SummaryMaxLength int
	SummaryMinLength int
	MinBodyChars     int
	Workers          int
	BackfillLimit    int
	WindowDays       int
	DigestAlways     bool
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
// Extractor, Summarizer, and Notifier may be nil; their stages degrade
// gracefully.
type PipelineDeps struct {
	Source       ports.ArticleSource
	Articles     ports.ArticleRepository
	Digests      ports.DigestRepository
	Extractor    ports.ContentExtractor
	Summarizer   ports.Summarizer
	DigestClient ports.DigestClient
	Emitter      ports.DigestEmitter
	Notifier     ports.Notifier
	Logger       *slog.Logger
	Options      PipelineOptions
}

// Pipeline implements the ingestion-normalization-digest workflow:
// ingest -> dedup filter -> summarize backfill -> (if due) synthesize -> emit.
// Per-item failures are absorbed into the run report; only stage-level and
// configuration failures propagate as errors.
type Pipeline struct {
	source       ports.ArticleSource
	articles     ports.ArticleRepository
	digests      ports.DigestRepository
	extractor    ports.ContentExtractor
	summarizer   ports.Summarizer
	digestClient ports.DigestClient
	emitter      ports.DigestEmitter
	notifier     ports.Notifier
	logger       *slog.Logger
	opts         PipelineOptions
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	opts := deps.Options
	if opts.SummaryMaxLength <= 0 {
		opts.SummaryMaxLength = 130
	}
	if opts.SummaryMinLength <= 0 {
		opts.SummaryMinLength = 30
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = 7
	}
	return &Pipeline{
		source:       deps.Source,
		articles:     deps.Articles,
		digests:      deps.Digests,
		extractor:    deps.Extractor,
		summarizer:   deps.Summarizer,
		digestClient: deps.DigestClient,
		emitter:      deps.Emitter,
		notifier:     deps.Notifier,
		logger:       deps.Logger,
		opts:         opts,
	}
}

// Run executes one full pipeline pass. Ingestion commits before the digest
// stage runs, so a digest failure never invalidates persisted articles.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (domain.RunReport, error) {
	var report domain.RunReport

	fetch, err := p.source.FetchRecent(ctx)
	report.Fetched = len(fetch.Candidates)
	report.Discarded = fetch.Discarded
	report.Stale = fetch.Stale
	report.FeedFailures = fetch.Failures
	if err != nil {
		return report, fmt.Errorf("ingest stage: %w", err)
	}

	// Dedup insert happens before the concurrent summarize fan-out, so the
	// uniqueness invariant never depends on summarization ordering.
	for _, candidate := range fetch.Candidates {
		inserted, err := p.articles.InsertIfAbsent(ctx, candidate)
		if err != nil {
			return report, fmt.Errorf("persist stage: %w", err)
		}
		if inserted {
			report.Inserted++
		} else {
			report.Duplicates++
			p.debug("duplicate skipped", "source_id", candidate.SourceID, "title", candidate.Title)
		}
	}

	if err := p.summarizeMissing(ctx, &report); err != nil {
		return report, err
	}

	due, err := p.digestDue(ctx, now)
	if err != nil {
		return report, fmt.Errorf("digest stage: %w", err)
	}
	if !due {
		report.DigestStatus = "skipped"
		p.debug("digest not due, skipping")
		return report, nil
	}

	digest, err := p.synthesizeDigest(ctx, now)
	if err != nil {
		return report, fmt.Errorf("digest stage: %w", err)
	}
	report.DigestStatus = string(digest.Status)

	if digest.Status == domain.DigestEmpty {
		p.debug("empty window, no-content digest recorded")
		return report, nil
	}

	if p.emitter != nil {
		path, err := p.emitter.Emit(ctx, *digest)
		if err != nil {
			return report, fmt.Errorf("emit stage: %w", err)
		}
		report.DigestPath = path
	}

	if p.notifier != nil {
		if err := p.notifier.PublishDigest(ctx, digest.Content); err != nil {
			p.warn("digest notification failed", "error", err)
		}
	}

	return report, nil
}

// summarizeMissing backfills every stored article still without a local
// summary, covering both this run's inserts and earlier failures. Summary
// failures are per-item: the article stays stored and the next run retries.
func (p *Pipeline) summarizeMissing(ctx context.Context, report *domain.RunReport) error {
	if p.summarizer == nil {
		return nil
	}

	pending, err := p.articles.MissingSummaries(ctx, p.opts.BackfillLimit)
	if err != nil {
		return fmt.Errorf("summarize stage: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.opts.Workers)

	for _, article := range pending {
		article := article
		group.Go(func() error {
			body := p.articleBody(groupCtx, article)
			if strings.TrimSpace(body) == "" {
				p.warn("no content to summarize", "source_id", article.SourceID, "title", article.Title)
				mu.Lock()
				report.SummarySkipped++
				mu.Unlock()
				return nil
			}

			summary, err := p.summarizer.Summarize(groupCtx, body, p.opts.SummaryMaxLength, p.opts.SummaryMinLength)
			if err != nil {
				p.warn("summarization failed", "source_id", article.SourceID, "error", err)
				mu.Lock()
				report.SummaryFailures++
				mu.Unlock()
				return nil
			}

			if err := p.articles.UpdateSummary(groupCtx, article.SourceID, summary); err != nil {
				p.warn("summary update failed", "source_id", article.SourceID, "error", err)
				mu.Lock()
				report.SummaryFailures++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			report.Summarized++
			mu.Unlock()
			return nil
		})
	}

	return group.Wait()
}

// articleBody picks the text to summarize, extracting the full page when the
// feed excerpt is too thin and an extractor is wired.
func (p *Pipeline) articleBody(ctx context.Context, article domain.Article) string {
	body := article.RawBody
	if p.extractor == nil || article.URL == "" || len(body) >= p.opts.MinBodyChars {
		return body
	}

	extracted, err := p.extractor.Extract(ctx, article.URL)
	if err != nil {
		p.warn("content extraction failed", "url", article.URL, "error", err)
		return body
	}
	if strings.TrimSpace(extracted) == "" {
		return body
	}
	return extracted
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
