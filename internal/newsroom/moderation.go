package newsroom

import (
	"context"
	"time"
)

type (
	ModerationRepo interface {
		// InsertFlaggedArticle stores a pending_review article and its item in one
		// go. Either both are stored or neither is.
		InsertFlaggedArticle(ctx context.Context, a Article, reason string) (Article, ModerationItem, error)
		ModerationItem(ctx context.Context, id string) (ModerationItem, error)
		ModerationItems(ctx context.Context, args ModerationItemsArgs) ([]ModerationItem, error)
		CountModerationItems(ctx context.Context, args ModerationItemsArgs) (int, error)
		// ResolveModerationItem moves a pending item to a final status and updates
		// the article along with it. Resolving an item that isn't pending is an ErrConflict.
		ResolveModerationItem(ctx context.Context, id string, status ModerationStatus) (ModerationItem, error)
	}

	// ModerationItem is an article waiting on a human decision.
	ModerationItem struct {
		ID         string           `db:"id"`
		ArticleID  string           `db:"article_id"`
		Reason     string           `db:"reason"`
		Status     ModerationStatus `db:"status"`
		CreatedAt  time.Time        `db:"created_at"`
		ResolvedAt *time.Time       `db:"resolved_at"`
	}

	ModerationItemsArgs struct {
		Status ModerationStatus
		Limit  uint64
		Offset uint64
	}
)

type ModerationStatus string

const (
	ModerationStatusPending  ModerationStatus = "pending"
	ModerationStatusApproved ModerationStatus = "approved"
	ModerationStatusRejected ModerationStatus = "rejected"
)

// ArticleStatus is what the article becomes once the item is resolved.
func (s ModerationStatus) ArticleStatus() ArticleStatus {
	switch s {
	case ModerationStatusApproved:
		return ArticleStatusPublished
	case ModerationStatusRejected:
		return ArticleStatusRejected
	default:
		return ArticleStatusPendingReview
	}
}

// Repository is the whole of the storage the service needs.
type Repository interface {
	ArticleRepo
	ModerationRepo
	RunRepo
}
