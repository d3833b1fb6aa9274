package domain

import "time"

// DigestStatus marks whether a digest holds synthesized content or records
// an empty aggregation window.
type DigestStatus string

const (
	DigestGenerated DigestStatus = "generated"
	DigestEmpty     DigestStatus = "empty"
)

// Digest is the weekly synthesis produced from a window of stored articles.
// At most one digest exists per (PeriodStart, PeriodEnd) pair; regeneration
// replaces the prior row.
type Digest struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Status      DigestStatus
	Content     string
	GeneratedAt time.Time
	ArticleIDs  []string // included articles in publish order, for audit
}

// RunReport collects per-stage aggregate counts for a single pipeline run.
// Per-item failures are absorbed into these counters; only stage-level
// failures propagate as errors.
type RunReport struct {
	Fetched         int
	Inserted        int
	Duplicates      int
	Discarded       int
	Stale           int
	Summarized      int
	SummaryFailures int
	SummarySkipped  int
	FeedFailures    []FeedFailure
	DigestStatus    string // "generated", "empty", or "skipped"
	DigestPath      string
}
