// Package moderation holds articles back for a human to look at before they
// are published.
package moderation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jdholdren/newsroom/internal/newsroom"
)

type Queue struct {
	repo newsroom.ModerationRepo
}

func NewQueue(repo newsroom.ModerationRepo) Queue {
	return Queue{repo: repo}
}

// Hold stores a flagged article as pending_review along with its queue item.
// If either can't be stored neither is.
func (q Queue) Hold(ctx context.Context, a newsroom.Article, reason string) (newsroom.Article, newsroom.ModerationItem, error) {
	a, item, err := q.repo.InsertFlaggedArticle(ctx, a, reason)
	if err != nil {
		return newsroom.Article{}, newsroom.ModerationItem{}, fmt.Errorf("error holding article for moderation: %w", err)
	}
	slog.InfoContext(ctx, "article held for moderation", "article_id", a.ID, "item_id", item.ID, "reason", reason)

	return a, item, nil
}

// Pending lists items still waiting on a decision, oldest first.
func (q Queue) Pending(ctx context.Context, limit, offset uint64) ([]newsroom.ModerationItem, int, error) {
	args := newsroom.ModerationItemsArgs{
		Status: newsroom.ModerationStatusPending,
		Limit:  limit,
		Offset: offset,
	}
	items, err := q.repo.ModerationItems(ctx, args)
	if err != nil {
		return nil, 0, err
	}
	total, err := q.repo.CountModerationItems(ctx, args)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// Approve publishes the item's article.
func (q Queue) Approve(ctx context.Context, id string) (newsroom.ModerationItem, error) {
	return q.resolve(ctx, id, newsroom.ModerationStatusApproved)
}

// Reject keeps the item's article out for good.
func (q Queue) Reject(ctx context.Context, id string) (newsroom.ModerationItem, error) {
	return q.resolve(ctx, id, newsroom.ModerationStatusRejected)
}

func (q Queue) resolve(ctx context.Context, id string, status newsroom.ModerationStatus) (newsroom.ModerationItem, error) {
	item, err := q.repo.ResolveModerationItem(ctx, id, status)
	if err != nil {
		return newsroom.ModerationItem{}, err
	}
	slog.InfoContext(ctx, "moderation item resolved", "item_id", id, "article_id", item.ArticleID, "status", status)

	return item, nil
}
