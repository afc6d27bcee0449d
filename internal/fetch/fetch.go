// Package fetch pulls items off of RSS and Atom feeds.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"github.com/jdholdren/newsroom/internal/batch"
	"github.com/jdholdren/newsroom/internal/logger"
	"github.com/jdholdren/newsroom/internal/newsroom"
)

type (
	Config struct {
		Timeout    time.Duration // Per request
		MaxItems   int           // Items kept per feed
		MaxRetries uint64        // Retries after the first attempt
		BatchSize  int
		BatchPause time.Duration
		UserAgent  string
	}

	// Fetcher grabs feeds over HTTP and normalizes their items.
	Fetcher struct {
		client *http.Client
		cfg    Config

		// Overridable in tests so retries don't take seconds.
		newBackOff func() backoff.BackOff
	}

	// Result is the outcome of fetching a single source.
	Result struct {
		Source newsroom.FeedSource
		Items  []newsroom.RawItem
		Err    error
	}
)

// StatusError is a non-200 answer from a feed.
type StatusError struct {
	Code int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Temporary reports if the request is worth trying again.
func (e StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 10
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 3
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "newsroom/1.0 (+https://github.com/jdholdren/newsroom)"
	}

	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

// Fetch grabs a single feed and returns at most MaxItems of its items.
//
// Network errors, 429s and 5xxs are retried with backoff. A feed without any
// items is not an error.
func (f *Fetcher) Fetch(ctx context.Context, src newsroom.FeedSource) ([]newsroom.RawItem, error) {
	var feed *gofeed.Feed
	op := func() error {
		var err error
		feed, err = f.get(ctx, src.URL)
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.WarnContext(ctx, "retrying feed fetch", "error", err, "wait", wait)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(f.newBackOff(), f.cfg.MaxRetries), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, fmt.Errorf("error fetching feed %q: %w", src.Name, err)
	}

	return f.items(src, feed), nil
}

func (f *Fetcher) get(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("error building request: %w", err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("error getting feed url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := StatusError{Code: resp.StatusCode}
		if statusErr.Temporary() {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, backoff.Permanent(ParseError{Err: err})
	}

	return feed, nil
}

func (f *Fetcher) items(src newsroom.FeedSource, feed *gofeed.Feed) []newsroom.RawItem {
	var feedImage string
	if feed.Image != nil {
		feedImage = feed.Image.URL
	}

	items := []newsroom.RawItem{}
	for _, item := range feed.Items {
		if len(items) == f.cfg.MaxItems {
			break
		}

		title := sanitizeTitle(item.Title)
		if title == "" {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" && strings.HasPrefix(item.GUID, "http") {
			link = item.GUID
		}
		if link == "" {
			continue
		}

		body := item.Content
		if strings.TrimSpace(body) == "" {
			body = item.Description
		}

		published := time.Now().UTC()
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}

		image := itemImage(item)
		if image == "" {
			image = feedImage
		}

		items = append(items, newsroom.RawItem{
			Title:          title,
			Content:        sanitize(body),
			SourceURL:      link,
			SourceName:     src.Name,
			SourceCategory: src.Category,
			ImageURL:       image,
			PublishedAt:    published,
		})
	}

	return items
}

// FetchAll fetches every source in batches, never letting one source's
// failure affect another. Results are in the same order as sources.
func (f *Fetcher) FetchAll(ctx context.Context, sources []newsroom.FeedSource) []Result {
	results := make([]Result, len(sources))
	_, err := batch.Run(ctx, lo.Range(len(sources)), f.cfg.BatchSize, f.cfg.BatchPause, func(ctx context.Context, i int) error {
		src := sources[i]
		ctx = logger.Ctx(ctx, slog.String("source", src.Name))

		items, err := f.Fetch(ctx, src)
		if err != nil {
			slog.ErrorContext(ctx, "error fetching source", "error", err)
			results[i] = Result{Source: src, Items: []newsroom.RawItem{}, Err: err}
			return nil
		}

		slog.InfoContext(ctx, "fetched source", "items", len(items))
		results[i] = Result{Source: src, Items: items}
		return nil
	})
	if err != nil {
		// Only cancellation gets here: mark whatever never ran.
		for i := range results {
			if results[i].Source.Name == "" {
				results[i] = Result{Source: sources[i], Items: []newsroom.RawItem{}, Err: err}
			}
		}
	}

	return results
}

// ParseError is a body that isn't a feed gofeed understands.
type ParseError struct {
	Err error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("error decoding feed: %s", e.Err)
}

func (e ParseError) Unwrap() error {
	return e.Err
}

// IsTemporary reports if a fetch error is worth retrying later.
func IsTemporary(err error) bool {
	var (
		statusErr StatusError
		parseErr  ParseError
	)
	switch {
	case errors.As(err, &statusErr):
		return statusErr.Temporary()
	case errors.As(err, &parseErr):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}
