package moderation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/newsroom/internal/database"
	"github.com/jdholdren/newsroom/internal/migrations"
	"github.com/jdholdren/newsroom/internal/newsroom"
)

func newTestQueue(t *testing.T) (Queue, database.Repo) {
	t.Helper()

	dbx, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	require.NoError(t, migrations.Run(dbx))

	repo := database.New(dbx)
	return NewQueue(repo), repo
}

func flaggedArticle(url string) newsroom.Article {
	return newsroom.Article{
		Title:          url,
		SourceURL:      url,
		SourceName:     "Example",
		RelevanceScore: 6,
	}
}

func TestQueue(t *testing.T) {
	var (
		ctx         = context.Background()
		queue, repo = newTestQueue(t)
	)

	first, approveMe, err := queue.Hold(ctx, flaggedArticle("https://example.com/1"), "profanity")
	require.NoError(t, err)
	assert.Equal(t, newsroom.ArticleStatusPendingReview, first.Status)
	second, rejectMe, err := queue.Hold(ctx, flaggedArticle("https://example.com/2"), "profanity")
	require.NoError(t, err)

	pending, total, err := queue.Pending(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	assert.Equal(t, 2, total)

	_, err = queue.Approve(ctx, approveMe.ID)
	require.NoError(t, err)
	_, err = queue.Reject(ctx, rejectMe.ID)
	require.NoError(t, err)

	a, err := repo.Article(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, newsroom.ArticleStatusPublished, a.Status)

	a, err = repo.Article(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, newsroom.ArticleStatusRejected, a.Status)

	pending, total, err = queue.Pending(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Zero(t, total)
}

func TestQueue_ResolveTwice(t *testing.T) {
	var (
		ctx         = context.Background()
		queue, repo = newTestQueue(t)
	)

	article, item, err := queue.Hold(ctx, flaggedArticle("https://example.com/1"), "profanity")
	require.NoError(t, err)

	_, err = queue.Reject(ctx, item.ID)
	require.NoError(t, err)

	_, err = queue.Approve(ctx, item.ID)
	assert.ErrorIs(t, err, newsroom.ErrConflict)

	// The first decision sticks
	a, err := repo.Article(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, newsroom.ArticleStatusRejected, a.Status)
}

func TestQueue_HoldDuplicate(t *testing.T) {
	var (
		ctx      = context.Background()
		queue, _ = newTestQueue(t)
	)

	_, _, err := queue.Hold(ctx, flaggedArticle("https://example.com/1"), "profanity")
	require.NoError(t, err)

	_, _, err = queue.Hold(ctx, flaggedArticle("https://example.com/1"), "profanity")
	assert.ErrorIs(t, err, newsroom.ErrConflict)

	_, total, err := queue.Pending(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
