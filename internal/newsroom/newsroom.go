// Package newsroom holds the domain types shared by the ingestion pipeline,
// its storage, and the admin surfaces.
package newsroom

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Priority orders sources within the registry.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank is used to sort sources, lower goes first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

type (
	// FeedSource is a single RSS or Atom feed the pipeline pulls from.
	FeedSource struct {
		Name     string   `json:"name" toml:"name" yaml:"name"`
		URL      string   `json:"url" toml:"url" yaml:"url"`
		Category string   `json:"category" toml:"category" yaml:"category"`
		Priority Priority `json:"priority" toml:"priority" yaml:"priority"`
	}

	// RawItem is what comes off of a feed before it's checked or enriched.
	RawItem struct {
		Title          string    `json:"title"`
		Content        string    `json:"content"`
		SourceURL      string    `json:"source_url"`
		SourceName     string    `json:"source_name"`
		SourceCategory string    `json:"source_category"`
		ImageURL       string    `json:"image_url"`
		PublishedAt    time.Time `json:"published_at"`
	}
)

// IdempotencyKey derives the key an item is stored under.
//
// Two items pointing at the same article, modulo tracking params, fragments,
// host casing and trailing slashes, share a key.
func IdempotencyKey(sourceURL string) string {
	sum := sha256.Sum256([]byte(NormalizeURL(sourceURL)))
	return hex.EncodeToString(sum[:])
}

// NormalizeURL returns the canonical form of a link used for duplicate checks.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	q := u.Query()
	for k := range q {
		if strings.HasPrefix(strings.ToLower(k), "utm_") {
			q.Del(k)
		}
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	u.RawQuery = b.String()

	return u.String()
}

// NormalizeTitle is the form titles are compared in.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
