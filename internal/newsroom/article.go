package newsroom

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type (
	ArticleRepo interface {
		InsertArticle(ctx context.Context, a Article) (Article, error)
		Article(ctx context.Context, id string) (Article, error)
		Articles(ctx context.Context, args ArticlesArgs) ([]Article, error)
		CountArticles(ctx context.Context, args ArticlesArgs) (int, error)
		// FindDuplicate looks for a stored article with the same idempotency key
		// or the same normalized title, returning its ID.
		FindDuplicate(ctx context.Context, key, title string) (string, error)
		RecentArticles(ctx context.Context, limit int) ([]Article, error)
		Stats(ctx context.Context) (Stats, error)
	}

	// Article is an enriched item that made it through the pipeline.
	Article struct {
		ID                   string        `db:"id"`
		IdempotencyKey       string        `db:"idempotency_key"`
		RunID                string        `db:"run_id"`
		Title                string        `db:"title"`
		TitleNormalized      string        `db:"title_normalized"`
		Content              string        `db:"content"`
		Summary              Summary       `db:"summary"`
		Categories           StringList    `db:"categories"`
		Keywords             StringList    `db:"keywords"`
		RelevanceScore       int           `db:"relevance_score"`
		RelevanceExplanation string        `db:"relevance_explanation"`
		Language             string        `db:"language"`
		SourceURL            string        `db:"source_url"`
		SourceName           string        `db:"source_name"`
		ImageURL             string        `db:"image_url"`
		Status               ArticleStatus `db:"status"`
		PublishedAt          time.Time     `db:"published_at"`
		CreatedAt            time.Time     `db:"created_at"`
		UpdatedAt            time.Time     `db:"updated_at"`
	}

	// Optional filters for listing articles.
	ArticlesArgs struct {
		Status ArticleStatus
		Source string
		Limit  uint64
		Offset uint64
	}

	Stats struct {
		Articles          int        `db:"articles" json:"articles"`
		Published         int        `db:"published" json:"published"`
		PendingReview     int        `db:"pending_review" json:"pending_review"`
		Rejected          int        `db:"rejected" json:"rejected"`
		PendingModeration int        `db:"pending_moderation" json:"pending_moderation"`
		Runs              int        `db:"runs" json:"runs"`
		LastRunAt         *time.Time `db:"last_run_at" json:"last_run_at"`
	}
)

type ArticleStatus string

const (
	ArticleStatusPublished     ArticleStatus = "published"
	ArticleStatusPendingReview ArticleStatus = "pending_review"
	ArticleStatusRejected      ArticleStatus = "rejected"
)

// Summary is the model's digest of an item.
type Summary struct {
	MainPoints     []string `json:"main_points"`
	Implications   string   `json:"implications"`
	RelevanceScore int      `json:"relevance_score"`
}

func (s Summary) Value() (driver.Value, error) {
	if s.MainPoints == nil {
		s.MainPoints = []string{}
	}
	byts, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(byts), nil
}

func (s *Summary) Scan(src any) error {
	return scanJSON(src, s)
}

// StringList is stored as a JSON array in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	byts, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(byts), nil
}

func (l *StringList) Scan(src any) error {
	return scanJSON(src, l)
}

func scanJSON(src, dst any) error {
	switch src := src.(type) {
	case nil:
		return nil
	case string:
		return json.Unmarshal([]byte(src), dst)
	case []byte:
		return json.Unmarshal(src, dst)
	default:
		return fmt.Errorf("unsupported type for json column: %T", src)
	}
}

type (
	RelevanceAssessment struct {
		Score       int    `json:"score"`
		Explanation string `json:"explanation"`
	}

	// Enrichment is everything the model added to an item.
	//
	// Fallbacks lists the stages that failed and were replaced with defaults;
	// Failures holds the reason for each of them.
	Enrichment struct {
		Summary     Summary             `json:"summary"`
		Categories  []string            `json:"categories"`
		Keywords    []string            `json:"keywords"`
		Relevance   RelevanceAssessment `json:"relevance"`
		Language    string              `json:"language"`
		Translated  bool                `json:"translated"`
		ProcessedAt time.Time           `json:"processed_at"`
		Fallbacks   []string            `json:"fallbacks,omitempty"`
		Failures    map[string]string   `json:"failures,omitempty"`
	}
)

// UsedFallback reports if the stage fell back to its defaults.
func (e Enrichment) UsedFallback(stage string) bool {
	for _, f := range e.Fallbacks {
		if f == stage {
			return true
		}
	}
	return false
}
