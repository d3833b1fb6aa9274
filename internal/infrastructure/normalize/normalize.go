package normalize

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"RssDigest/internal/domain"
)

var whitespaceExpr = regexp.MustCompile(`\s+`)

// dateFormats covers the publish-date variants seen across RSS sources.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// CleanText strips HTML markup from feed-provided text, decodes entities,
// and collapses runs of whitespace.
func CleanText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	text := raw
	if strings.ContainsAny(raw, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw)); err == nil {
			text = doc.Text()
		}
	}

	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(text, " "))
}

// CleanURL returns the URL unchanged when it has a scheme and host, and an
// empty string otherwise.
func CleanURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return raw
}

// ParseDate attempts the known publish-date layouts and reports whether any
// matched.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range dateFormats {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Article applies text and URL normalization to a candidate in place.
func Article(a domain.Article) domain.Article {
	a.Title = CleanText(a.Title)
	a.RawBody = CleanText(a.RawBody)
	a.URL = CleanURL(a.URL)
	return a
}
