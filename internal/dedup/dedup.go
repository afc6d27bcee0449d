// Package dedup decides whether an incoming item is already known.
//
// Checks go from cheap to expensive: exact matches inside the run, exact
// matches against the database, then a semantic comparison with recent
// articles through the model.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jdholdren/newsroom/internal/llm"
	"github.com/jdholdren/newsroom/internal/logger"
	"github.com/jdholdren/newsroom/internal/newsroom"
)

const (
	// DefaultRecent is how many stored articles an item is compared against.
	DefaultRecent = 10
	// DefaultMinConfidence is the confidence a semantic match needs to count.
	DefaultMinConfidence = 0.7

	cacheSize = 4096
)

type (
	// Repo is the part of the article store the filter reads.
	Repo interface {
		FindDuplicate(ctx context.Context, key, title string) (string, error)
		RecentArticles(ctx context.Context, limit int) ([]newsroom.Article, error)
	}

	// Comparer asks whether two items cover the same story.
	Comparer interface {
		CompareDuplicate(ctx context.Context, candidate, existing llm.Comparable) (llm.DuplicateVerdict, error)
	}

	Filter struct {
		repo          Repo
		cmp           Comparer
		cache         *lru.Cache[string, llm.DuplicateVerdict]
		recent        int
		minConfidence float64
		now           func() time.Time
	}

	Option func(*Filter)

	// Verdict is the outcome of checking one item.
	Verdict struct {
		Duplicate bool
		// Exact is set when the match didn't need the model.
		Exact      bool
		MatchingID string
		Reason     string
		CheckedAt  time.Time
	}
)

// WithRecent sets how many recent articles are compared semantically. Zero
// turns the semantic tier off.
func WithRecent(n int) Option {
	return func(f *Filter) {
		f.recent = n
	}
}

func WithMinConfidence(c float64) Option {
	return func(f *Filter) {
		f.minConfidence = c
	}
}

func New(repo Repo, cmp Comparer, opts ...Option) *Filter {
	cache, _ := lru.New[string, llm.DuplicateVerdict](cacheSize)
	f := &Filter{
		repo:          repo,
		cmp:           cmp,
		cache:         cache,
		recent:        DefaultRecent,
		minConfidence: DefaultMinConfidence,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// InRun drops items repeating the URL or normalized title of an earlier item
// in the same batch of fetched items. The first occurrence wins.
func InRun(items []newsroom.RawItem) (unique, dups []newsroom.RawItem) {
	var (
		seenURLs   = map[string]bool{}
		seenTitles = map[string]bool{}
	)
	unique = make([]newsroom.RawItem, 0, len(items))
	for _, item := range items {
		var (
			key   = newsroom.IdempotencyKey(item.SourceURL)
			title = newsroom.NormalizeTitle(item.Title)
		)
		if seenURLs[key] || seenTitles[title] {
			dups = append(dups, item)
			continue
		}

		seenURLs[key] = true
		seenTitles[title] = true
		unique = append(unique, item)
	}

	return unique, dups
}

// Check runs the database and semantic tiers for a single item.
func (f *Filter) Check(ctx context.Context, item newsroom.RawItem) (Verdict, error) {
	ctx = logger.Ctx(ctx, slog.String("stage", newsroom.StageDedup))

	id, err := f.repo.FindDuplicate(ctx, newsroom.IdempotencyKey(item.SourceURL), newsroom.NormalizeTitle(item.Title))
	switch {
	case err == nil:
		return Verdict{
			Duplicate:  true,
			Exact:      true,
			MatchingID: id,
			Reason:     "matches a stored article's url or title",
			CheckedAt:  f.now().UTC(),
		}, nil
	case !errors.Is(err, newsroom.ErrNotFound):
		return Verdict{}, fmt.Errorf("error looking up duplicates: %w", err)
	}

	if f.recent <= 0 || f.cmp == nil {
		return Verdict{CheckedAt: f.now().UTC()}, nil
	}

	recent, err := f.repo.RecentArticles(ctx, f.recent)
	if err != nil {
		return Verdict{}, fmt.Errorf("error fetching recent articles: %w", err)
	}

	candidate := llm.Comparable{Title: item.Title, Content: item.Content}
	for _, article := range recent {
		existing := llm.Comparable{Title: article.Title, Content: article.Content}
		verdict, err := f.compare(ctx, candidate, existing)
		if err != nil {
			// Can't tell, so it's treated as distinct
			slog.WarnContext(ctx, "error comparing for duplicates", "article_id", article.ID, "error", err)
			continue
		}
		if verdict.Duplicate && verdict.Confidence >= f.minConfidence {
			return Verdict{
				Duplicate:  true,
				MatchingID: article.ID,
				Reason:     verdict.Reason,
				CheckedAt:  f.now().UTC(),
			}, nil
		}
	}

	return Verdict{CheckedAt: f.now().UTC()}, nil
}

func (f *Filter) compare(ctx context.Context, candidate, existing llm.Comparable) (llm.DuplicateVerdict, error) {
	key := pairKey(candidate, existing)
	if v, ok := f.cache.Get(key); ok {
		return v, nil
	}

	v, err := f.cmp.CompareDuplicate(ctx, candidate, existing)
	if err != nil {
		return llm.DuplicateVerdict{}, err
	}
	f.cache.Add(key, v)

	return v, nil
}

func pairKey(a, b llm.Comparable) string {
	return contentHash(a) + ":" + contentHash(b)
}

func contentHash(c llm.Comparable) string {
	sum := sha256.Sum256([]byte(newsroom.NormalizeTitle(c.Title) + "\x00" + c.Content))
	return hex.EncodeToString(sum[:])
}
