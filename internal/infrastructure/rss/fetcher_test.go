package rss

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"RssDigest/internal/config"
	"RssDigest/internal/domain"
)

func feedXML(items string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Feed</title><link>https://example.org</link>` + items + `</channel></rss>`
}

func itemXML(title, link, guid string, published time.Time) string {
	var linkTag, guidTag string
	if link != "" {
		linkTag = "<link>" + link + "</link>"
	}
	if guid != "" {
		guidTag = "<guid>" + guid + "</guid>"
	}
	return fmt.Sprintf(`<item><title>%s</title>%s%s<pubDate>%s</pubDate><description>Body of %s</description></item>`,
		title, linkTag, guidTag, published.Format(time.RFC1123Z), title)
}

func testFetchConfig() config.FetchConfig {
	return config.FetchConfig{
		DaysLimit:  7,
		MaxRetries: 1,
		Workers:    2,
	}
}

func TestFetchRecentKeepsFeedAndEntryOrder(t *testing.T) {
	t.Parallel()

	recent := time.Now().Add(-24 * time.Hour)

	serverA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML(
			itemXML("A1", "https://example.org/a1", "a1", recent)+
				itemXML("A2", "https://example.org/a2", "a2", recent)))
	}))
	defer serverA.Close()

	serverB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML(itemXML("B1", "https://example.org/b1", "b1", recent)))
	}))
	defer serverB.Close()

	feeds := []config.FeedConfig{
		{Name: "feedA", URL: serverA.URL},
		{Name: "feedB", URL: serverB.URL},
	}
	fetcher := NewFetcher(nil, feeds, testFetchConfig(), nil)

	result, err := fetcher.FetchRecent(context.Background())
	if err != nil {
		t.Fatalf("FetchRecent error: %v", err)
	}

	if len(result.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(result.Candidates))
	}

	wantTitles := []string{"A1", "A2", "B1"}
	for i, want := range wantTitles {
		if result.Candidates[i].Title != want {
			t.Fatalf("candidate %d: expected %s, got %s", i, want, result.Candidates[i].Title)
		}
	}
	if result.Candidates[0].Feed != "feedA" || result.Candidates[2].Feed != "feedB" {
		t.Fatalf("unexpected feed attribution: %+v", result.Candidates)
	}
}

func TestFetchRecentIsolatesFeedFailure(t *testing.T) {
	t.Parallel()

	recent := time.Now().Add(-24 * time.Hour)

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML(itemXML("Fresh", "https://example.org/fresh", "fresh", recent)))
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	feeds := []config.FeedConfig{
		{Name: "healthy", URL: healthy.URL},
		{Name: "broken", URL: broken.URL},
	}
	fetcher := NewFetcher(nil, feeds, testFetchConfig(), nil)

	result, err := fetcher.FetchRecent(context.Background())
	if err != nil {
		t.Fatalf("FetchRecent error: %v", err)
	}

	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate from the healthy feed, got %d", len(result.Candidates))
	}
	if len(result.Failures) != 1 || result.Failures[0].Feed != "broken" {
		t.Fatalf("expected one failure for the broken feed, got %+v", result.Failures)
	}
}

func TestFetchRecentAllFeedsFailing(t *testing.T) {
	t.Parallel()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	feeds := []config.FeedConfig{
		{Name: "one", URL: broken.URL},
		{Name: "two", URL: broken.URL},
	}
	fetcher := NewFetcher(nil, feeds, testFetchConfig(), nil)

	result, err := fetcher.FetchRecent(context.Background())
	if err == nil {
		t.Fatal("expected an error when every feed fails")
	}
	if len(result.Failures) != 2 {
		t.Fatalf("expected 2 recorded failures, got %d", len(result.Failures))
	}
}

func TestFetchRecentDiscardsEntriesWithoutIdentity(t *testing.T) {
	t.Parallel()

	recent := time.Now().Add(-24 * time.Hour)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML(
			itemXML("No identity", "", "", recent)+
				itemXML("Keeper", "https://example.org/keep", "keep", recent)))
	}))
	defer server.Close()

	fetcher := NewFetcher(nil, []config.FeedConfig{{Name: "feed", URL: server.URL}}, testFetchConfig(), nil)

	result, err := fetcher.FetchRecent(context.Background())
	if err != nil {
		t.Fatalf("FetchRecent error: %v", err)
	}

	if result.Discarded != 1 {
		t.Fatalf("expected 1 discarded entry, got %d", result.Discarded)
	}
	if len(result.Candidates) != 1 || result.Candidates[0].Title != "Keeper" {
		t.Fatalf("unexpected candidates: %+v", result.Candidates)
	}
}

func TestFetchRecentSkipsStaleEntries(t *testing.T) {
	t.Parallel()

	old := time.Now().AddDate(0, 0, -30)
	recent := time.Now().Add(-24 * time.Hour)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML(
			itemXML("Ancient", "https://example.org/old", "old", old)+
				itemXML("Fresh", "https://example.org/fresh", "fresh", recent)))
	}))
	defer server.Close()

	fetcher := NewFetcher(nil, []config.FeedConfig{{Name: "feed", URL: server.URL}}, testFetchConfig(), nil)

	result, err := fetcher.FetchRecent(context.Background())
	if err != nil {
		t.Fatalf("FetchRecent error: %v", err)
	}

	if result.Stale != 1 {
		t.Fatalf("expected 1 stale entry, got %d", result.Stale)
	}
	if len(result.Candidates) != 1 || result.Candidates[0].Title != "Fresh" {
		t.Fatalf("unexpected candidates: %+v", result.Candidates)
	}
}

func TestFetchRecentRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	recent := time.Now().Add(-24 * time.Hour)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, feedXML(itemXML("Fresh", "https://example.org/fresh", "fresh", recent)))
	}))
	defer server.Close()

	cfg := testFetchConfig()
	cfg.MaxRetries = 2
	fetcher := NewFetcher(nil, []config.FeedConfig{{Name: "flaky", URL: server.URL}}, cfg, nil)
	fetcher.sleep = func(context.Context, time.Duration) error { return nil }

	result, err := fetcher.FetchRecent(context.Background())
	if err != nil {
		t.Fatalf("FetchRecent error: %v", err)
	}

	if calls.Load() != 2 {
		t.Fatalf("expected 2 fetch attempts, got %d", calls.Load())
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate after retry, got %d", len(result.Candidates))
	}
}

func TestEntryPublishedFallsBackToRawDates(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, time.November, 8, 12, 30, 0, 0, time.UTC)

	if got := entryPublished(&gofeed.Item{Published: "2025-11-08 12:30:00"}); !got.Equal(want) {
		t.Fatalf("raw published date not parsed: %v", got)
	}
	if got := entryPublished(&gofeed.Item{Updated: "2025-11-08"}); got.Day() != 8 || got.Month() != time.November {
		t.Fatalf("raw updated date not parsed: %v", got)
	}
	if got := entryPublished(&gofeed.Item{Published: "sometime last week"}); !got.IsZero() {
		t.Fatalf("unparseable date should yield zero time, got %v", got)
	}

	exact := time.Date(2025, time.October, 1, 8, 0, 0, 0, time.UTC)
	item := &gofeed.Item{Published: "2025-11-08 12:30:00", PublishedParsed: &exact}
	if got := entryPublished(item); !got.Equal(exact) {
		t.Fatalf("parsed field must win over raw string, got %v", got)
	}
}

func TestCandidateIdentityIsStable(t *testing.T) {
	t.Parallel()

	first := domain.NewSourceID("https://example.org/feed", "guid-1")
	second := domain.NewSourceID("https://example.org/feed", "guid-1")
	other := domain.NewSourceID("https://example.org/feed", "guid-2")

	if first != second {
		t.Fatalf("identity not stable: %s vs %s", first, second)
	}
	if first == other {
		t.Fatal("distinct entries produced the same identity")
	}
	if len(first) != 16 {
		t.Fatalf("unexpected identity length: %d", len(first))
	}
}
