package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jdholdren/newsroom/internal/newsroom"
)

var articleColumns = []string{
	"id",
	"idempotency_key",
	"run_id",
	"title",
	"title_normalized",
	"content",
	"summary",
	"categories",
	"keywords",
	"relevance_score",
	"relevance_explanation",
	"language",
	"source_url",
	"source_name",
	"image_url",
	"status",
	"published_at",
	"created_at",
	"updated_at",
}

// InsertArticle stores the article, keyed by its idempotency key. A second
// article with the same key is an ErrConflict.
func (r Repo) InsertArticle(ctx context.Context, a newsroom.Article) (newsroom.Article, error) {
	a, err := r.insertArticle(ctx, r.db, a)
	if err != nil {
		return newsroom.Article{}, err
	}

	return r.Article(ctx, a.ID)
}

func (r Repo) insertArticle(ctx context.Context, ext sqlx.ExtContext, a newsroom.Article) (newsroom.Article, error) {
	const q = `INSERT INTO articles (
		id,
		idempotency_key,
		run_id,
		title,
		title_normalized,
		content,
		summary,
		categories,
		keywords,
		relevance_score,
		relevance_explanation,
		language,
		source_url,
		source_name,
		image_url,
		status,
		published_at,
		created_at,
		updated_at
	) VALUES (
		:id,
		:idempotency_key,
		:run_id,
		:title,
		:title_normalized,
		:content,
		:summary,
		:categories,
		:keywords,
		:relevance_score,
		:relevance_explanation,
		:language,
		:source_url,
		:source_name,
		:image_url,
		:status,
		:published_at,
		:created_at,
		:updated_at
	);`

	now := r.now()
	a.ID = fmt.Sprintf("%s%s", uuid.NewString(), articleNamespace)
	if a.IdempotencyKey == "" {
		a.IdempotencyKey = newsroom.IdempotencyKey(a.SourceURL)
	}
	// Callers that translate the title pass the original's normalized form
	if a.TitleNormalized == "" {
		a.TitleNormalized = newsroom.NormalizeTitle(a.Title)
	}
	if a.Status == "" {
		a.Status = newsroom.ArticleStatusPublished
	}
	if a.PublishedAt.IsZero() {
		a.PublishedAt = now
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := sqlx.NamedExecContext(ctx, ext, q, a)
	if isConflict(err) {
		return newsroom.Article{}, fmt.Errorf("article already exists: %w", newsroom.ErrConflict)
	}
	if err != nil {
		return newsroom.Article{}, fmt.Errorf("error inserting article: %s", err)
	}

	return a, nil
}

func (r Repo) Article(ctx context.Context, id string) (newsroom.Article, error) {
	query, args, err := r.sb.Select(articleColumns...).From("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return newsroom.Article{}, fmt.Errorf("error constructing sql: %s", err)
	}

	var article newsroom.Article
	err = r.db.GetContext(ctx, &article, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return newsroom.Article{}, newsroom.ErrNotFound
	}
	if err != nil {
		return newsroom.Article{}, fmt.Errorf("error fetching article: %s", err)
	}

	return article, nil
}

func articleFilters(q sq.SelectBuilder, args newsroom.ArticlesArgs) sq.SelectBuilder {
	if args.Status != "" {
		q = q.Where(sq.Eq{"status": args.Status})
	}
	if args.Source != "" {
		q = q.Where(sq.Eq{"source_name": args.Source})
	}
	return q
}

// Articles lists articles newest first.
func (r Repo) Articles(ctx context.Context, args newsroom.ArticlesArgs) ([]newsroom.Article, error) {
	q := articleFilters(r.sb.Select(articleColumns...).From("articles"), args).
		OrderBy("published_at DESC", "id")
	if args.Limit > 0 {
		q = q.Limit(args.Limit).Offset(args.Offset)
	}
	query, qArgs, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	articles := []newsroom.Article{}
	if err := r.db.SelectContext(ctx, &articles, query, qArgs...); err != nil {
		return nil, fmt.Errorf("error selecting articles: %s", err)
	}

	return articles, nil
}

func (r Repo) CountArticles(ctx context.Context, args newsroom.ArticlesArgs) (int, error) {
	query, qArgs, err := articleFilters(r.sb.Select("COUNT(*)").From("articles"), args).ToSql()
	if err != nil {
		return 0, fmt.Errorf("error constructing sql: %s", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, qArgs...); err != nil {
		return 0, fmt.Errorf("error counting articles: %s", err)
	}

	return count, nil
}

// FindDuplicate returns the ID of an article with the given idempotency key
// or normalized title, or ErrNotFound.
func (r Repo) FindDuplicate(ctx context.Context, key, title string) (string, error) {
	q := r.db.Rebind(`SELECT id FROM articles WHERE idempotency_key = ? OR title_normalized = ? LIMIT 1;`)

	var id string
	err := r.db.GetContext(ctx, &id, q, key, title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", newsroom.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error looking up duplicate: %s", err)
	}

	return id, nil
}

// RecentArticles returns the most recently stored articles.
func (r Repo) RecentArticles(ctx context.Context, limit int) ([]newsroom.Article, error) {
	query, args, err := r.sb.Select(articleColumns...).
		From("articles").
		OrderBy("created_at DESC", "id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	articles := []newsroom.Article{}
	if err := r.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, fmt.Errorf("error selecting recent articles: %s", err)
	}

	return articles, nil
}

func (r Repo) Stats(ctx context.Context) (newsroom.Stats, error) {
	const articlesQ = `
	SELECT
		COUNT(*) AS articles,
		COALESCE(SUM(CASE WHEN status = 'published' THEN 1 ELSE 0 END), 0) AS published,
		COALESCE(SUM(CASE WHEN status = 'pending_review' THEN 1 ELSE 0 END), 0) AS pending_review,
		COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0) AS rejected
	FROM
		articles;
	`

	var stats newsroom.Stats
	if err := r.db.GetContext(ctx, &stats, articlesQ); err != nil {
		return newsroom.Stats{}, fmt.Errorf("error counting articles: %s", err)
	}

	const pendingQ = `SELECT COUNT(*) FROM moderation_queue WHERE status = 'pending';`
	if err := r.db.GetContext(ctx, &stats.PendingModeration, pendingQ); err != nil {
		return newsroom.Stats{}, fmt.Errorf("error counting moderation items: %s", err)
	}

	const runsQ = `SELECT COUNT(*) FROM ingestion_runs;`
	if err := r.db.GetContext(ctx, &stats.Runs, runsQ); err != nil {
		return newsroom.Stats{}, fmt.Errorf("error counting runs: %s", err)
	}

	// Selected as a plain column so the driver hands back a timestamp
	const lastRunQ = `SELECT started_at FROM ingestion_runs ORDER BY started_at DESC LIMIT 1;`
	var lastRun sql.NullTime
	err := r.db.GetContext(ctx, &lastRun, lastRunQ)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newsroom.Stats{}, fmt.Errorf("error fetching last run: %s", err)
	}
	if lastRun.Valid {
		stats.LastRunAt = &lastRun.Time
	}

	return stats, nil
}
