package readability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	readability "github.com/go-shiori/go-readability"

	"RssDigest/internal/ports"
)

// Extractor pulls readable article text from the source page when the feed
// excerpt is too thin to summarize.
type Extractor struct {
	timeout time.Duration
	logger  *slog.Logger

	// fromURL is swapped in tests; readability.FromURL drives its own HTTP
	// request and timeout.
	fromURL func(pageURL string, timeout time.Duration) (readability.Article, error)
}

var _ ports.ContentExtractor = (*Extractor)(nil)

// NewExtractor builds an extractor with the given per-page timeout.
func NewExtractor(timeout time.Duration, log *slog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Extractor{
		timeout: timeout,
		logger:  log,
		fromURL: readability.FromURL,
	}
}

// Extract fetches the page and returns its readable text content.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (string, error) {
	if pageURL == "" {
		return "", fmt.Errorf("article URL is empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	article, err := e.fromURL(pageURL, e.timeout)
	if err != nil {
		return "", fmt.Errorf("readability extraction failed: %w", err)
	}

	if e.logger != nil {
		e.logger.Debug("content extracted", "url", pageURL, "chars", len(article.TextContent))
	}
	return article.TextContent, nil
}
