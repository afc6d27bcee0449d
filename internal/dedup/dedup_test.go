package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/newsroom/internal/llm"
	"github.com/jdholdren/newsroom/internal/newsroom"
)

type fakeRepo struct {
	byKey   map[string]string
	byTitle map[string]string
	recent  []newsroom.Article
	err     error
}

func (f fakeRepo) FindDuplicate(ctx context.Context, key, title string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if id, ok := f.byKey[key]; ok {
		return id, nil
	}
	if id, ok := f.byTitle[title]; ok {
		return id, nil
	}
	return "", newsroom.ErrNotFound
}

func (f fakeRepo) RecentArticles(ctx context.Context, limit int) ([]newsroom.Article, error) {
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

type fakeComparer struct {
	verdicts map[string]llm.DuplicateVerdict
	err      error
	calls    int
}

func (f *fakeComparer) CompareDuplicate(ctx context.Context, candidate, existing llm.Comparable) (llm.DuplicateVerdict, error) {
	f.calls++
	if f.err != nil {
		return llm.DuplicateVerdict{}, f.err
	}
	return f.verdicts[existing.Title], nil
}

func TestInRun(t *testing.T) {
	items := []newsroom.RawItem{
		{Title: "First", SourceURL: "https://example.com/a"},
		{Title: "Second", SourceURL: "https://example.com/a/"},
		{Title: "  first ", SourceURL: "https://example.com/b"},
		{Title: "Third", SourceURL: "https://example.com/c"},
	}

	unique, dups := InRun(items)
	assert.Equal(t, []newsroom.RawItem{items[0], items[3]}, unique)
	assert.Equal(t, []newsroom.RawItem{items[1], items[2]}, dups)
}

func TestCheck_ExactURL(t *testing.T) {
	repo := fakeRepo{byKey: map[string]string{
		newsroom.IdempotencyKey("https://example.com/a"): "art-1",
	}}
	cmp := &fakeComparer{}

	v, err := New(repo, cmp).Check(context.Background(), newsroom.RawItem{
		Title:     "Anything",
		SourceURL: "https://EXAMPLE.com/a?utm_source=rss",
	})
	require.NoError(t, err)
	assert.True(t, v.Duplicate)
	assert.True(t, v.Exact)
	assert.Equal(t, "art-1", v.MatchingID)
	assert.Zero(t, cmp.calls)
}

func TestCheck_ExactTitle(t *testing.T) {
	repo := fakeRepo{byTitle: map[string]string{"openai ships a model": "art-2"}}

	v, err := New(repo, &fakeComparer{}).Check(context.Background(), newsroom.RawItem{
		Title:     "OpenAI  ships a Model",
		SourceURL: "https://other.com/story",
	})
	require.NoError(t, err)
	assert.True(t, v.Duplicate)
	assert.Equal(t, "art-2", v.MatchingID)
}

func TestCheck_Semantic(t *testing.T) {
	repo := fakeRepo{recent: []newsroom.Article{
		{ID: "art-1", Title: "Unrelated"},
		{ID: "art-2", Title: "Lab launches model"},
	}}
	cmp := &fakeComparer{verdicts: map[string]llm.DuplicateVerdict{
		"Lab launches model": {Duplicate: true, Confidence: 0.95, Reason: "same launch"},
	}}
	f := New(repo, cmp)
	item := newsroom.RawItem{Title: "Model launched by lab", SourceURL: "https://example.com/x"}

	v, err := f.Check(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, v.Duplicate)
	assert.False(t, v.Exact)
	assert.Equal(t, "art-2", v.MatchingID)
	assert.Equal(t, "same launch", v.Reason)
	assert.Equal(t, 2, cmp.calls)

	// Same pairs again come from the cache
	_, err = f.Check(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, 2, cmp.calls)
}

func TestCheck_LowConfidenceIsDistinct(t *testing.T) {
	repo := fakeRepo{recent: []newsroom.Article{{ID: "art-1", Title: "Lab launches model"}}}
	cmp := &fakeComparer{verdicts: map[string]llm.DuplicateVerdict{
		"Lab launches model": {Duplicate: true, Confidence: 0.4},
	}}

	v, err := New(repo, cmp).Check(context.Background(), newsroom.RawItem{Title: "Lab news", SourceURL: "https://example.com/x"})
	require.NoError(t, err)
	assert.False(t, v.Duplicate)
}

func TestCheck_ComparisonErrorIsNotDuplicate(t *testing.T) {
	repo := fakeRepo{recent: []newsroom.Article{{ID: "art-1"}, {ID: "art-2", Title: "b"}}}
	cmp := &fakeComparer{err: errors.New("model down")}

	v, err := New(repo, cmp).Check(context.Background(), newsroom.RawItem{Title: "x", SourceURL: "https://example.com/x"})
	require.NoError(t, err)
	assert.False(t, v.Duplicate)
	assert.Equal(t, 2, cmp.calls)
	assert.False(t, v.CheckedAt.IsZero())
}

func TestCheck_RepoError(t *testing.T) {
	repo := fakeRepo{err: errors.New("db gone")}

	_, err := New(repo, &fakeComparer{}).Check(context.Background(), newsroom.RawItem{Title: "x"})
	assert.ErrorContains(t, err, "db gone")
}

func TestCheck_SemanticTierOff(t *testing.T) {
	repo := fakeRepo{recent: []newsroom.Article{{ID: "art-1"}}}
	cmp := &fakeComparer{}

	v, err := New(repo, cmp, WithRecent(0)).Check(context.Background(), newsroom.RawItem{Title: "x"})
	require.NoError(t, err)
	assert.False(t, v.Duplicate)
	assert.Zero(t, cmp.calls)
}
