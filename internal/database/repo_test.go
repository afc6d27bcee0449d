package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/newsroom/internal/migrations"
	"github.com/jdholdren/newsroom/internal/newsroom"
)

func newTestRepo(t *testing.T) Repo {
	t.Helper()

	dbx, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	require.NoError(t, migrations.Run(dbx))

	return New(dbx)
}

func testArticle(title, url string) newsroom.Article {
	return newsroom.Article{
		Title:   title,
		Content: "content",
		Summary: newsroom.Summary{
			MainPoints:     []string{"point"},
			Implications:   "implications",
			RelevanceScore: 7,
		},
		Categories:           newsroom.StringList{"AI Research"},
		Keywords:             newsroom.StringList{"llm"},
		RelevanceScore:       7,
		RelevanceExplanation: "relevant",
		Language:             "en",
		SourceURL:            url,
		SourceName:           "Example",
		PublishedAt:          time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestInsertArticle(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	a, err := repo.InsertArticle(ctx, testArticle("OpenAI Ships  A Model", "https://example.com/a"))
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, newsroom.IdempotencyKey("https://example.com/a"), a.IdempotencyKey)
	assert.Equal(t, "openai ships a model", a.TitleNormalized)
	assert.Equal(t, newsroom.ArticleStatusPublished, a.Status)
	assert.Equal(t, []string{"point"}, a.Summary.MainPoints)
	assert.Equal(t, newsroom.StringList{"AI Research"}, a.Categories)
	assert.True(t, a.PublishedAt.Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))

	got, err := repo.Article(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = repo.Article(ctx, "nope")
	assert.ErrorIs(t, err, newsroom.ErrNotFound)
}

func TestInsertArticle_KeepsGivenNormalizedTitle(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	a := testArticle("Lab Launches Model", "https://example.com/a")
	a.TitleNormalized = newsroom.NormalizeTitle("Labor Startet Modell")
	a, err := repo.InsertArticle(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "Lab Launches Model", a.Title)
	assert.Equal(t, "labor startet modell", a.TitleNormalized)

	id, err := repo.FindDuplicate(ctx, "other-key", newsroom.NormalizeTitle("Labor startet Modell"))
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)
}

func TestInsertArticle_SameKeyConflicts(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	_, err := repo.InsertArticle(ctx, testArticle("One", "https://example.com/a"))
	require.NoError(t, err)

	_, err = repo.InsertArticle(ctx, testArticle("Two", "https://EXAMPLE.com/a/?utm_source=x"))
	assert.ErrorIs(t, err, newsroom.ErrConflict)

	count, err := repo.CountArticles(ctx, newsroom.ArticlesArgs{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFindDuplicate(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	a, err := repo.InsertArticle(ctx, testArticle("Lab Launches Model", "https://example.com/a"))
	require.NoError(t, err)

	id, err := repo.FindDuplicate(ctx, newsroom.IdempotencyKey("https://example.com/a"), "something else")
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)

	id, err = repo.FindDuplicate(ctx, "other-key", "lab launches model")
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)

	_, err = repo.FindDuplicate(ctx, "other-key", "other title")
	assert.ErrorIs(t, err, newsroom.ErrNotFound)
}

func TestArticles(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	for i, url := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
		a := testArticle(url, url)
		a.PublishedAt = time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC)
		if i == 2 {
			a.Status = newsroom.ArticleStatusPendingReview
		}
		_, err := repo.InsertArticle(ctx, a)
		require.NoError(t, err)
	}

	all, err := repo.Articles(ctx, newsroom.ArticlesArgs{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "https://example.com/3", all[0].SourceURL)

	published, err := repo.Articles(ctx, newsroom.ArticlesArgs{Status: newsroom.ArticleStatusPublished, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "https://example.com/1", published[0].SourceURL)

	count, err := repo.CountArticles(ctx, newsroom.ArticlesArgs{Status: newsroom.ArticleStatusPublished})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRecentArticles(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
		now  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	)
	repo.now = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}

	for _, url := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
		_, err := repo.InsertArticle(ctx, testArticle(url, url))
		require.NoError(t, err)
	}

	recent, err := repo.RecentArticles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "https://example.com/3", recent[0].SourceURL)
	assert.Equal(t, "https://example.com/2", recent[1].SourceURL)
}

func TestResolveModerationItem(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	a, item, err := repo.InsertFlaggedArticle(ctx, testArticle("Flagged", "https://example.com/flagged"), "profanity")
	require.NoError(t, err)
	assert.Equal(t, newsroom.ArticleStatusPendingReview, a.Status)
	assert.Equal(t, a.ID, item.ArticleID)
	assert.Equal(t, "profanity", item.Reason)
	assert.Equal(t, newsroom.ModerationStatusPending, item.Status)
	assert.Nil(t, item.ResolvedAt)

	pending, err := repo.ModerationItems(ctx, newsroom.ModerationItemsArgs{Status: newsroom.ModerationStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	resolved, err := repo.ResolveModerationItem(ctx, item.ID, newsroom.ModerationStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, newsroom.ModerationStatusApproved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	a, err = repo.Article(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, newsroom.ArticleStatusPublished, a.Status)

	// Once resolved it can't be resolved again
	_, err = repo.ResolveModerationItem(ctx, item.ID, newsroom.ModerationStatusRejected)
	assert.ErrorIs(t, err, newsroom.ErrConflict)

	_, err = repo.ResolveModerationItem(ctx, "missing", newsroom.ModerationStatusRejected)
	assert.ErrorIs(t, err, newsroom.ErrNotFound)

	count, err := repo.CountModerationItems(ctx, newsroom.ModerationItemsArgs{Status: newsroom.ModerationStatusPending})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInsertFlaggedArticle_SameKeyConflicts(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	_, err := repo.InsertArticle(ctx, testArticle("One", "https://example.com/a"))
	require.NoError(t, err)

	_, _, err = repo.InsertFlaggedArticle(ctx, testArticle("Two", "https://example.com/a"), "profanity")
	assert.ErrorIs(t, err, newsroom.ErrConflict)

	count, err := repo.CountModerationItems(ctx, newsroom.ModerationItemsArgs{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInsertFlaggedArticle_NothingStoredOnFailure(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	// The article insert works but the queue insert can't
	_, err := repo.db.ExecContext(ctx, `DROP TABLE moderation_queue;`)
	require.NoError(t, err)

	_, _, err = repo.InsertFlaggedArticle(ctx, testArticle("Flagged", "https://example.com/flagged"), "profanity")
	require.Error(t, err)

	count, err := repo.CountArticles(ctx, newsroom.ArticlesArgs{})
	require.NoError(t, err)
	assert.Zero(t, count)

	// Nothing left behind to look like a duplicate later
	id, err := repo.FindDuplicate(ctx, newsroom.IdempotencyKey("https://example.com/flagged"), newsroom.NormalizeTitle("Flagged"))
	assert.ErrorIs(t, err, newsroom.ErrNotFound)
	assert.Empty(t, id)
}

func TestRuns(t *testing.T) {
	var (
		ctx     = context.Background()
		repo    = newTestRepo(t)
		started = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	)

	report := newsroom.Report{
		ID:         newsroom.NewRunID(),
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}
	report.Add(newsroom.ItemOutcome{Title: "a", Outcome: newsroom.OutcomeStored, ArticleID: "art"})
	report.Add(newsroom.ItemOutcome{Title: "b", Outcome: newsroom.OutcomeDuplicate})
	report.Failures = newsroom.SourceFailures{{Source: "Broken", Error: "status 500"}}
	report.FetchFailures = 1
	require.NoError(t, repo.InsertRun(ctx, report))
	assert.ErrorIs(t, repo.InsertRun(ctx, report), newsroom.ErrConflict)

	got, err := repo.Run(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Processed)
	assert.Equal(t, 1, got.Stored)
	assert.Equal(t, 1, got.Duplicates)
	assert.Equal(t, report.Outcomes, got.Outcomes)
	assert.Equal(t, report.Failures, got.Failures)

	_, err = repo.Run(ctx, "missing")
	assert.ErrorIs(t, err, newsroom.ErrNotFound)

	runs, err := repo.Runs(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Runs)
	require.NotNil(t, stats.LastRunAt)
	assert.True(t, stats.LastRunAt.Equal(started))
}

func TestStats(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = newTestRepo(t)
	)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, newsroom.Stats{}, stats)

	_, err = repo.InsertArticle(ctx, testArticle("a", "https://example.com/a"))
	require.NoError(t, err)
	_, _, err = repo.InsertFlaggedArticle(ctx, testArticle("b", "https://example.com/b"), "profanity")
	require.NoError(t, err)

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Articles)
	assert.Equal(t, 1, stats.Published)
	assert.Equal(t, 1, stats.PendingReview)
	assert.Equal(t, 1, stats.PendingModeration)
	assert.Nil(t, stats.LastRunAt)
}
