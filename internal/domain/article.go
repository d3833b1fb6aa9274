package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Article is the normalized record produced by the ingestion pipeline and
// persisted for deduplication, summarization, and weekly aggregation.
type Article struct {
	SourceID     string
	Feed         string
	Title        string
	URL          string
	PublishedAt  time.Time // zero when the feed entry carried no parseable date
	RawBody      string
	LocalSummary string
	FetchedAt    time.Time
}

// Summarized reports whether the local summarizer has produced output for
// this article; an empty summary counts as absent so a later run backfills it.
func (a Article) Summarized() bool {
	return a.LocalSummary != ""
}

// NewSourceID derives the stable dedup identity from the feed URL and the
// entry's GUID (or link when no GUID is present).
func NewSourceID(feedURL, entryID string) string {
	hash := sha256.Sum256([]byte(feedURL + "\n" + entryID))
	return hex.EncodeToString(hash[:])[:16]
}

// FeedFailure records a single feed that could not be fetched this run.
type FeedFailure struct {
	Feed   string
	URL    string
	Reason string
}

// FetchResult aggregates the outcome of fetching every configured feed.
type FetchResult struct {
	Candidates []Article
	Failures   []FeedFailure
	Discarded  int // entries missing both GUID and link
	Stale      int // entries older than the configured cutoff
}
