// Package v1 holds the request and response bodies of the admin API.
package v1

import (
	"time"
)

type (
	Source struct {
		Name     string `json:"name"`
		URL      string `json:"url"`
		Category string `json:"category"`
		Priority string `json:"priority"`
	}

	SourceList struct {
		Sources []Source `json:"sources"`
	}

	Summary struct {
		MainPoints     []string `json:"main_points"`
		Implications   string   `json:"implications"`
		RelevanceScore int      `json:"relevance_score"`
	}

	Article struct {
		ID                   string    `json:"id"`
		RunID                string    `json:"run_id"`
		Title                string    `json:"title"`
		Content              string    `json:"content"`
		Summary              Summary   `json:"summary"`
		Categories           []string  `json:"categories"`
		Keywords             []string  `json:"keywords"`
		RelevanceScore       int       `json:"relevance_score"`
		RelevanceExplanation string    `json:"relevance_explanation"`
		Language             string    `json:"language"`
		SourceURL            string    `json:"source_url"`
		SourceName           string    `json:"source_name"`
		ImageURL             string    `json:"image_url,omitempty"`
		Status               string    `json:"status"`
		PublishedAt          time.Time `json:"published_at"`
		CreatedAt            time.Time `json:"created_at"`
	}

	ArticleList struct {
		Articles   []Article  `json:"articles"`
		Pagination Pagination `json:"pagination"`
	}

	// ReaderView is an article's page stripped down to its readable parts.
	ReaderView struct {
		ID            string `json:"id"`
		URL           string `json:"url"`
		Title         string `json:"title"`
		Byline        string `json:"byline,omitempty"`
		ReaderContent string `json:"reader_content"`
	}

	ModerationItem struct {
		ID         string     `json:"id"`
		ArticleID  string     `json:"article_id"`
		Reason     string     `json:"reason"`
		Status     string     `json:"status"`
		CreatedAt  time.Time  `json:"created_at"`
		ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	}

	ModerationList struct {
		Items      []ModerationItem `json:"items"`
		Pagination Pagination       `json:"pagination"`
	}

	Pagination struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
		Total  int `json:"total"`
	}
)
