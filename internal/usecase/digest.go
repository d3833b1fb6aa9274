package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"RssDigest/internal/domain"
)

// promptContentLimit caps how much raw body text a single article
// contributes to the prompt.
const promptContentLimit = 2000

const emptyWindowContent = "No articles were published in this window."

// digestDue reports whether the synthesis stage should run: once per
// calendar week, unless forced by configuration.
func (p *Pipeline) digestDue(ctx context.Context, now time.Time) (bool, error) {
	if p.digestClient == nil {
		return false, nil
	}
	if p.opts.DigestAlways {
		return true, nil
	}

	last, err := p.digests.LastGeneratedAt(ctx)
	if err != nil {
		return false, err
	}
	if last.IsZero() {
		return true, nil
	}

	lastYear, lastWeek := last.UTC().ISOWeek()
	nowYear, nowWeek := now.UTC().ISOWeek()
	return lastYear != nowYear || lastWeek != nowWeek, nil
}

// synthesizeDigest selects the trailing window, performs the single remote
// call, and stores the result. An empty window records a no-content digest
// without spending an API call. Reruns for the same period replace the
// stored digest.
func (p *Pipeline) synthesizeDigest(ctx context.Context, now time.Time) (*domain.Digest, error) {
	end := now.UTC()
	start := end.AddDate(0, 0, -p.opts.WindowDays)

	digest := domain.Digest{
		PeriodStart: start.Truncate(24 * time.Hour),
		PeriodEnd:   end.Truncate(24 * time.Hour),
		GeneratedAt: end,
	}

	articles, err := p.articles.SelectWindow(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("select window: %w", err)
	}

	if len(articles) == 0 {
		digest.Status = domain.DigestEmpty
		digest.Content = emptyWindowContent
		digest.ArticleIDs = []string{}
		if err := p.digests.SaveDigest(ctx, digest); err != nil {
			return nil, fmt.Errorf("save empty digest: %w", err)
		}
		return &digest, nil
	}

	prompt := BuildDigestPrompt(articles, start, end)
	content, err := p.digestClient.SynthesizeDigest(ctx, prompt)
	if err != nil {
		return nil, err
	}

	digest.Status = domain.DigestGenerated
	digest.Content = digestHeader(start, end) + content
	digest.ArticleIDs = make([]string, 0, len(articles))
	for _, article := range articles {
		digest.ArticleIDs = append(digest.ArticleIDs, article.SourceID)
	}

	if err := p.digests.SaveDigest(ctx, digest); err != nil {
		return nil, fmt.Errorf("save digest: %w", err)
	}
	return &digest, nil
}

func digestHeader(start, end time.Time) string {
	return fmt.Sprintf("# Weekly AI Watch — %s to %s\n\n",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// BuildDigestPrompt assembles the synthesis prompt: articles grouped by
// feed with their local summaries, followed by the report instructions.
func BuildDigestPrompt(articles []domain.Article, start, end time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an AI-domain analyst producing a strategic weekly briefing.\n\n")
	fmt.Fprintf(&b, "Below is a compilation of articles published between %s and %s:\n",
		start.Format("2006-01-02"), end.Format("2006-01-02"))

	byFeed := map[string][]domain.Article{}
	var feedOrder []string
	for _, article := range articles {
		if _, seen := byFeed[article.Feed]; !seen {
			feedOrder = append(feedOrder, article.Feed)
		}
		byFeed[article.Feed] = append(byFeed[article.Feed], article)
	}

	for _, feed := range feedOrder {
		group := byFeed[feed]
		fmt.Fprintf(&b, "\n## Articles from %s (%d articles)\n", feed, len(group))

		for _, article := range group {
			if article.PublishedAt.IsZero() {
				fmt.Fprintf(&b, "\n### [%s](%s)\n", article.Title, article.URL)
			} else {
				fmt.Fprintf(&b, "\n### [%s](%s) — %s\n",
					article.Title, article.URL, article.PublishedAt.Format("2006-01-02"))
			}

			switch {
			case article.LocalSummary != "":
				fmt.Fprintf(&b, "Summary: %s\n", article.LocalSummary)
			case article.RawBody != "":
				fmt.Fprintf(&b, "Content: %s\n", truncateContent(article.RawBody))
			}
		}
	}

	b.WriteString(`
Write a structured report in Markdown with these sections:

1. Executive summary (300-400 words): trends, weak signals, breakthroughs, and warning signs of the week.
2. Key figures: investment amounts, important dates, major announcements, when relevant.
3. Technical advances: new models, architectures, and notable publications.
4. Industry initiatives: partnerships, acquisitions, market-moving launches.
5. Societal and regulatory issues: legal developments, ethical debates, governance impact.
6. Open-source and community projects: new libraries, tools, contributions, events.
7. Further reading: the most relevant articles grouped by theme, with their links.

Prioritize analysis, perspective, and selection over completeness; keep the style professional, factual, and concise.
`)

	return b.String()
}

func truncateContent(text string) string {
	runes := []rune(text)
	if len(runes) <= promptContentLimit {
		return text
	}
	return string(runes[:promptContentLimit]) + "..."
}
