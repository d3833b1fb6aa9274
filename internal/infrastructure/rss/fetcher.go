package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"RssDigest/internal/config"
	"RssDigest/internal/domain"
	"RssDigest/internal/infrastructure/normalize"
	"RssDigest/internal/ports"
)

const userAgent = "RssDigest/1.0"

// Fetcher retrieves configured RSS/Atom feeds and turns their entries into
// normalized candidate articles. Feeds fail independently; only total
// failure across every feed is an error.
type Fetcher struct {
	client *http.Client
	feeds  []config.FeedConfig
	cfg    config.FetchConfig
	logger *slog.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

var _ ports.ArticleSource = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; a nil client gets the configured timeout.
func NewFetcher(client *http.Client, feeds []config.FeedConfig, cfg config.FetchConfig, log *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout()}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &Fetcher{
		client: client,
		feeds:  feeds,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

type feedOutcome struct {
	candidates []domain.Article
	discarded  int
	stale      int
	err        error
}

// FetchRecent fetches every configured feed across a bounded worker pool.
// Output preserves the configured feed order, then entry order within each
// feed.
func (f *Fetcher) FetchRecent(ctx context.Context) (domain.FetchResult, error) {
	var result domain.FetchResult
	if len(f.feeds) == 0 {
		return result, fmt.Errorf("no feeds configured")
	}

	outcomes := make([]feedOutcome, len(f.feeds))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(f.cfg.Workers)
	for i, feed := range f.feeds {
		i, feed := i, feed
		group.Go(func() error {
			outcomes[i] = f.fetchFeed(groupCtx, feed)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return result, err
	}

	for i, outcome := range outcomes {
		if outcome.err != nil {
			f.warn("feed failed", "feed", f.feeds[i].Name, "error", outcome.err)
			result.Failures = append(result.Failures, domain.FeedFailure{
				Feed:   f.feeds[i].Name,
				URL:    f.feeds[i].URL,
				Reason: outcome.err.Error(),
			})
			continue
		}
		result.Candidates = append(result.Candidates, outcome.candidates...)
		result.Discarded += outcome.discarded
		result.Stale += outcome.stale
	}

	if len(result.Failures) == len(f.feeds) {
		return result, fmt.Errorf("all %d feeds failed", len(f.feeds))
	}

	return result, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, feed config.FeedConfig) feedOutcome {
	parsed, err := f.parseWithRetry(ctx, feed)
	if err != nil {
		return feedOutcome{err: err}
	}

	cutoff := f.now().AddDate(0, 0, -f.cfg.DaysLimit)
	fetchedAt := f.now().UTC()

	var outcome feedOutcome
	for _, item := range parsed.Items {
		entryID := item.GUID
		if entryID == "" {
			entryID = item.Link
		}
		if entryID == "" {
			f.warn("entry missing GUID and link, discarded", "feed", feed.Name, "title", item.Title)
			outcome.discarded++
			continue
		}

		publishedAt := entryPublished(item)
		if !publishedAt.IsZero() && publishedAt.Before(cutoff) {
			outcome.stale++
			continue
		}

		body := item.Content
		if body == "" {
			body = item.Description
		}

		candidate := normalize.Article(domain.Article{
			SourceID:    domain.NewSourceID(feed.URL, entryID),
			Feed:        feed.Name,
			Title:       item.Title,
			URL:         item.Link,
			PublishedAt: publishedAt,
			RawBody:     body,
			FetchedAt:   fetchedAt,
		})
		outcome.candidates = append(outcome.candidates, candidate)
	}

	f.debug("feed fetched", "feed", feed.Name,
		"entries", len(parsed.Items), "kept", len(outcome.candidates),
		"stale", outcome.stale, "discarded", outcome.discarded)
	return outcome
}

// entryPublished resolves an entry's publish time: gofeed's parsed fields
// first, then the raw date strings through the normalizer for formats gofeed
// gives up on. Zero time when nothing parses.
func entryPublished(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	if parsed, ok := normalize.ParseDate(item.Published); ok {
		return parsed
	}
	if parsed, ok := normalize.ParseDate(item.Updated); ok {
		return parsed
	}
	return time.Time{}
}

func (f *Fetcher) parseWithRetry(ctx context.Context, feed config.FeedConfig) (*gofeed.Feed, error) {
	parser := gofeed.NewParser()
	parser.Client = f.client
	parser.UserAgent = userAgent

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		parsed, err := parser.ParseURLWithContext(feed.URL, ctx)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
		f.warn("fetch attempt failed", "feed", feed.Name, "attempt", attempt, "error", err)

		if attempt < f.cfg.MaxRetries {
			if err := f.sleep(ctx, f.cfg.RetryDelay()); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("fetch %s after %d attempts: %w", feed.URL, f.cfg.MaxRetries, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

func (f *Fetcher) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
