package ports

import (
	"context"
	"time"

	"RssDigest/internal/domain"
)

// ArticleSource fetches candidate articles from every configured feed.
// A single feed's failure is reported inside the result, not as an error;
// the returned error is reserved for total failure across all feeds.
type ArticleSource interface {
	FetchRecent(ctx context.Context) (domain.FetchResult, error)
}

// ArticleRepository persists normalized articles; the primary key doubles as
// the dedup index, so InsertIfAbsent is the atomic "mark seen" action.
type ArticleRepository interface {
	InsertIfAbsent(ctx context.Context, article domain.Article) (bool, error)
	UpdateSummary(ctx context.Context, sourceID, summary string) error
	MissingSummaries(ctx context.Context, limit int) ([]domain.Article, error)
	SelectWindow(ctx context.Context, start, end time.Time) ([]domain.Article, error)
}

// DigestRepository stores one digest per aggregation period, replacing on
// regeneration.
type DigestRepository interface {
	SaveDigest(ctx context.Context, digest domain.Digest) error
	DigestForPeriod(ctx context.Context, start, end time.Time) (*domain.Digest, error)
	LastGeneratedAt(ctx context.Context) (time.Time, error)
}

// ContentExtractor pulls readable full text from an article page when the
// feed excerpt is too thin to summarize.
type ContentExtractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

// Summarizer produces a short local summary of article body text.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error)
}

// DigestClient performs the single remote LLM call that turns a prompt into
// the synthesized weekly digest text.
type DigestClient interface {
	SynthesizeDigest(ctx context.Context, prompt string) (string, error)
}

// DigestEmitter writes the digest artifact for external rendering
// collaborators and returns its location.
type DigestEmitter interface {
	Emit(ctx context.Context, digest domain.Digest) (string, error)
}

// Notifier pushes a generated digest to an outbound channel (Telegram, etc.).
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipeline runs execute in daemon mode.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
