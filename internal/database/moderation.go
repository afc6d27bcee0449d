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

var moderationColumns = []string{"id", "article_id", "reason", "status", "created_at", "resolved_at"}

func (r Repo) insertModerationItem(ctx context.Context, ext sqlx.ExtContext, item newsroom.ModerationItem) (newsroom.ModerationItem, error) {
	const q = `INSERT INTO moderation_queue (id, article_id, reason, status, created_at)
	VALUES (:id, :article_id, :reason, :status, :created_at);`

	item.ID = fmt.Sprintf("%s%s", uuid.NewString(), moderationNamespace)
	item.Status = newsroom.ModerationStatusPending
	item.CreatedAt = r.now()
	item.ResolvedAt = nil
	if _, err := sqlx.NamedExecContext(ctx, ext, q, item); err != nil {
		return newsroom.ModerationItem{}, fmt.Errorf("error inserting moderation item: %s", err)
	}

	return item, nil
}

// InsertFlaggedArticle stores the article and its moderation item together,
// so a flagged article never exists outside the queue.
func (r Repo) InsertFlaggedArticle(ctx context.Context, a newsroom.Article, reason string) (newsroom.Article, newsroom.ModerationItem, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return newsroom.Article{}, newsroom.ModerationItem{}, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	a.Status = newsroom.ArticleStatusPendingReview
	a, err = r.insertArticle(ctx, tx, a)
	if err != nil {
		return newsroom.Article{}, newsroom.ModerationItem{}, err
	}
	item, err := r.insertModerationItem(ctx, tx, newsroom.ModerationItem{
		ArticleID: a.ID,
		Reason:    reason,
	})
	if err != nil {
		return newsroom.Article{}, newsroom.ModerationItem{}, err
	}

	if err := tx.Commit(); err != nil {
		return newsroom.Article{}, newsroom.ModerationItem{}, fmt.Errorf("error committing transaction: %w", err)
	}

	if a, err = r.Article(ctx, a.ID); err != nil {
		return newsroom.Article{}, newsroom.ModerationItem{}, err
	}
	if item, err = r.ModerationItem(ctx, item.ID); err != nil {
		return newsroom.Article{}, newsroom.ModerationItem{}, err
	}

	return a, item, nil
}

func (r Repo) ModerationItem(ctx context.Context, id string) (newsroom.ModerationItem, error) {
	query, args, err := r.sb.Select(moderationColumns...).From("moderation_queue").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return newsroom.ModerationItem{}, fmt.Errorf("error constructing sql: %s", err)
	}

	var item newsroom.ModerationItem
	err = r.db.GetContext(ctx, &item, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return newsroom.ModerationItem{}, newsroom.ErrNotFound
	}
	if err != nil {
		return newsroom.ModerationItem{}, fmt.Errorf("error fetching moderation item: %s", err)
	}

	return item, nil
}

// ModerationItems lists the queue oldest first, so it's worked through in order.
func (r Repo) ModerationItems(ctx context.Context, args newsroom.ModerationItemsArgs) ([]newsroom.ModerationItem, error) {
	q := r.sb.Select(moderationColumns...).From("moderation_queue").OrderBy("created_at", "id")
	if args.Status != "" {
		q = q.Where(sq.Eq{"status": args.Status})
	}
	if args.Limit > 0 {
		q = q.Limit(args.Limit).Offset(args.Offset)
	}
	query, qArgs, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	items := []newsroom.ModerationItem{}
	if err := r.db.SelectContext(ctx, &items, query, qArgs...); err != nil {
		return nil, fmt.Errorf("error selecting moderation items: %s", err)
	}

	return items, nil
}

func (r Repo) CountModerationItems(ctx context.Context, args newsroom.ModerationItemsArgs) (int, error) {
	q := r.sb.Select("COUNT(*)").From("moderation_queue")
	if args.Status != "" {
		q = q.Where(sq.Eq{"status": args.Status})
	}
	query, qArgs, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("error constructing sql: %s", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, qArgs...); err != nil {
		return 0, fmt.Errorf("error counting moderation items: %s", err)
	}

	return count, nil
}

func (r Repo) ResolveModerationItem(ctx context.Context, id string, status newsroom.ModerationStatus) (newsroom.ModerationItem, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return newsroom.ModerationItem{}, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now()
	res, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE moderation_queue SET status = ?, resolved_at = ? WHERE id = ? AND status = 'pending';`),
		status, now, id,
	)
	if err != nil {
		return newsroom.ModerationItem{}, fmt.Errorf("error resolving moderation item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return newsroom.ModerationItem{}, fmt.Errorf("error checking resolved rows: %w", err)
	}

	var articleID string
	err = tx.GetContext(ctx, &articleID, tx.Rebind(`SELECT article_id FROM moderation_queue WHERE id = ?;`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return newsroom.ModerationItem{}, newsroom.ErrNotFound
	}
	if err != nil {
		return newsroom.ModerationItem{}, fmt.Errorf("error fetching moderation item: %w", err)
	}
	if n == 0 {
		return newsroom.ModerationItem{}, fmt.Errorf("moderation item already resolved: %w", newsroom.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE articles SET status = ?, updated_at = ? WHERE id = ?;`),
		status.ArticleStatus(), now, articleID,
	); err != nil {
		return newsroom.ModerationItem{}, fmt.Errorf("error updating article status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return newsroom.ModerationItem{}, fmt.Errorf("error committing transaction: %w", err)
	}

	return r.ModerationItem(ctx, id)
}
