package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"RssDigest/internal/domain"
	"RssDigest/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	source_id     TEXT PRIMARY KEY,
	feed          TEXT NOT NULL,
	title         TEXT NOT NULL,
	url           TEXT NOT NULL,
	published_at  TEXT,
	raw_body      TEXT,
	local_summary TEXT,
	fetched_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles (published_at);
CREATE INDEX IF NOT EXISTS idx_articles_feed ON articles (feed);

CREATE TABLE IF NOT EXISTS digests (
	period_start       TEXT NOT NULL,
	period_end         TEXT NOT NULL,
	status             TEXT NOT NULL,
	content            TEXT NOT NULL,
	generated_at       TEXT NOT NULL,
	source_article_ids TEXT NOT NULL,
	PRIMARY KEY (period_start, period_end)
);
`

var articleColumns = []string{
	"source_id", "feed", "title", "url", "published_at", "raw_body", "local_summary", "fetched_at",
}

// SQLiteRepository persists articles and digests in a single SQLite file.
// The articles primary key is the dedup index: insertion is the atomic
// "mark seen" action.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.ArticleRepository = (*SQLiteRepository)(nil)
var _ ports.DigestRepository = (*SQLiteRepository)(nil)

// Open creates the database file (and parent directory) when absent and
// applies the schema.
func Open(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// InsertIfAbsent writes the article unless its identity already exists.
// Returns true when a row was inserted; re-inserting never touches a stored
// local_summary.
func (r *SQLiteRepository) InsertIfAbsent(ctx context.Context, article domain.Article) (bool, error) {
	query, args, err := sq.Insert("articles").
		Columns(articleColumns...).
		Values(
			article.SourceID,
			article.Feed,
			article.Title,
			article.URL,
			encodeTime(article.PublishedAt),
			article.RawBody,
			encodeSummary(article.LocalSummary),
			article.FetchedAt.UTC().Format(time.RFC3339),
		).
		Suffix("ON CONFLICT(source_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert article %s: %w", article.SourceID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// UpdateSummary backfills the local summary; a previously stored summary is
// never overwritten.
func (r *SQLiteRepository) UpdateSummary(ctx context.Context, sourceID, summary string) error {
	query, args, err := sq.Update("articles").
		Set("local_summary", summary).
		Where(sq.Eq{"source_id": sourceID}).
		Where(sq.Expr("(local_summary IS NULL OR local_summary = '')")).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update summary %s: %w", sourceID, err)
	}
	return nil
}

// MissingSummaries returns stored articles still waiting for a local
// summary, oldest fetch first.
func (r *SQLiteRepository) MissingSummaries(ctx context.Context, limit int) ([]domain.Article, error) {
	builder := sq.Select(articleColumns...).
		From("articles").
		Where(sq.Expr("(local_summary IS NULL OR local_summary = '')")).
		OrderBy("fetched_at ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	return r.queryArticles(ctx, query, args)
}

// SelectWindow returns the articles published within [start, end] in publish
// order. Articles without a publish date never enter a window.
func (r *SQLiteRepository) SelectWindow(ctx context.Context, start, end time.Time) ([]domain.Article, error) {
	query, args, err := sq.Select(articleColumns...).
		From("articles").
		Where(sq.NotEq{"published_at": nil}).
		Where(sq.GtOrEq{"published_at": start.UTC().Format(time.RFC3339)}).
		Where(sq.LtOrEq{"published_at": end.UTC().Format(time.RFC3339)}).
		OrderBy("published_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	return r.queryArticles(ctx, query, args)
}

// SaveDigest upserts the digest for its period; reruns replace, never
// duplicate.
func (r *SQLiteRepository) SaveDigest(ctx context.Context, digest domain.Digest) error {
	ids, err := json.Marshal(digest.ArticleIDs)
	if err != nil {
		return fmt.Errorf("marshal article ids: %w", err)
	}

	query, args, err := sq.Insert("digests").
		Columns("period_start", "period_end", "status", "content", "generated_at", "source_article_ids").
		Values(
			digest.PeriodStart.UTC().Format(time.RFC3339),
			digest.PeriodEnd.UTC().Format(time.RFC3339),
			string(digest.Status),
			digest.Content,
			digest.GeneratedAt.UTC().Format(time.RFC3339),
			string(ids),
		).
		Suffix(`ON CONFLICT(period_start, period_end) DO UPDATE SET
			status = excluded.status,
			content = excluded.content,
			generated_at = excluded.generated_at,
			source_article_ids = excluded.source_article_ids`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert digest: %w", err)
	}
	return nil
}

// DigestForPeriod returns the stored digest for the period, or nil.
func (r *SQLiteRepository) DigestForPeriod(ctx context.Context, start, end time.Time) (*domain.Digest, error) {
	query, args, err := sq.Select("period_start", "period_end", "status", "content", "generated_at", "source_article_ids").
		From("digests").
		Where(sq.Eq{
			"period_start": start.UTC().Format(time.RFC3339),
			"period_end":   end.UTC().Format(time.RFC3339),
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	row := r.db.QueryRowContext(ctx, query, args...)

	var (
		digest                            domain.Digest
		periodStart, periodEnd, generated string
		status, rawIDs                    string
	)
	if err := row.Scan(&periodStart, &periodEnd, &status, &digest.Content, &generated, &rawIDs); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan digest: %w", err)
	}

	digest.Status = domain.DigestStatus(status)
	if digest.PeriodStart, err = time.Parse(time.RFC3339, periodStart); err != nil {
		return nil, fmt.Errorf("parse period_start: %w", err)
	}
	if digest.PeriodEnd, err = time.Parse(time.RFC3339, periodEnd); err != nil {
		return nil, fmt.Errorf("parse period_end: %w", err)
	}
	if digest.GeneratedAt, err = time.Parse(time.RFC3339, generated); err != nil {
		return nil, fmt.Errorf("parse generated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(rawIDs), &digest.ArticleIDs); err != nil {
		return nil, fmt.Errorf("unmarshal article ids: %w", err)
	}

	return &digest, nil
}

// LastGeneratedAt returns the newest digest timestamp, zero when no digest
// exists yet. Empty-window digests count: one record per due period.
func (r *SQLiteRepository) LastGeneratedAt(ctx context.Context) (time.Time, error) {
	var last sql.NullString
	err := r.db.QueryRowContext(ctx, "SELECT MAX(generated_at) FROM digests").Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("query last digest: %w", err)
	}
	if !last.Valid || last.String == "" {
		return time.Time{}, nil
	}

	parsed, err := time.Parse(time.RFC3339, last.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse generated_at: %w", err)
	}
	return parsed, nil
}

func (r *SQLiteRepository) queryArticles(ctx context.Context, query string, args []any) ([]domain.Article, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var (
			article            domain.Article
			published, summary sql.NullString
			rawBody            sql.NullString
			fetched            string
		)
		if err := rows.Scan(
			&article.SourceID,
			&article.Feed,
			&article.Title,
			&article.URL,
			&published,
			&rawBody,
			&summary,
			&fetched,
		); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}

		if published.Valid && published.String != "" {
			if article.PublishedAt, err = time.Parse(time.RFC3339, published.String); err != nil {
				return nil, fmt.Errorf("parse published_at: %w", err)
			}
		}
		if article.FetchedAt, err = time.Parse(time.RFC3339, fetched); err != nil {
			return nil, fmt.Errorf("parse fetched_at: %w", err)
		}
		article.RawBody = rawBody.String
		article.LocalSummary = summary.String

		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

// encodeTime stores RFC3339 UTC text so lexicographic order matches
// chronological order; zero times become NULL.
func encodeTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func encodeSummary(summary string) any {
	if summary == "" {
		return nil
	}
	return summary
}
