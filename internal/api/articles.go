package api

import (
	"fmt"
	"net/http"
	"net/url"

	readability "github.com/go-shiori/go-readability"
	"github.com/gorilla/mux"
	"github.com/sym01/htmlsanitizer"

	v1 "github.com/jdholdren/newsroom/api/newsroom/v1"
	nrerrs "github.com/jdholdren/newsroom/internal/errors"
	"github.com/jdholdren/newsroom/internal/newsroom"
	"github.com/jdholdren/newsroom/internal/serverutil"
)

func apiArticle(a newsroom.Article) v1.Article {
	return v1.Article{
		ID:    a.ID,
		RunID: a.RunID,
		Title: a.Title,
		Summary: v1.Summary{
			MainPoints:     a.Summary.MainPoints,
			Implications:   a.Summary.Implications,
			RelevanceScore: a.Summary.RelevanceScore,
		},
		Content:              a.Content,
		Categories:           a.Categories,
		Keywords:             a.Keywords,
		RelevanceScore:       a.RelevanceScore,
		RelevanceExplanation: a.RelevanceExplanation,
		Language:             a.Language,
		SourceURL:            a.SourceURL,
		SourceName:           a.SourceName,
		ImageURL:             a.ImageURL,
		Status:               string(a.Status),
		PublishedAt:          a.PublishedAt,
		CreatedAt:            a.CreatedAt,
	}
}

func (s Server) getArticles(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx    = r.Context()
		status = newsroom.ArticleStatus(r.URL.Query().Get("status"))
	)
	switch status {
	case "", newsroom.ArticleStatusPublished, newsroom.ArticleStatusPendingReview, newsroom.ArticleStatusRejected:
	default:
		return nrerrs.E("invalid request", http.StatusBadRequest, nrerrs.Detail{Field: "status", Error: "unknown status"})
	}

	limit, offset := parsePaginationParams(r)
	args := newsroom.ArticlesArgs{
		Status: status,
		Source: r.URL.Query().Get("source"),
		Limit:  uint64(limit),
		Offset: uint64(offset),
	}

	total, err := s.repo.CountArticles(ctx, args)
	if err != nil {
		return err
	}
	articles, err := s.repo.Articles(ctx, args)
	if err != nil {
		return err
	}

	resp := v1.ArticleList{
		Articles:   make([]v1.Article, 0, len(articles)),
		Pagination: pagination(limit, offset, total),
	}
	for _, a := range articles {
		resp.Articles = append(resp.Articles, apiArticle(a))
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

func (s Server) getArticle(w http.ResponseWriter, r *http.Request) error {
	article, err := s.repo.Article(r.Context(), mux.Vars(r)["articleID"])
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, apiArticle(article))
}

// Fetches the article's page and strips it down to something readable.
func (s Server) getReaderView(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx       = r.Context()
		articleID = mux.Vars(r)["articleID"]
	)

	// Cache results for less processing and prevent refetches
	if resp, ok := s.readerCache.Get(articleID); ok {
		return serverutil.WriteJSON(w, http.StatusOK, resp)
	}

	article, err := s.repo.Article(ctx, articleID)
	if err != nil {
		return err
	}

	u, err := url.Parse(article.SourceURL)
	if err != nil {
		return fmt.Errorf("error with the article's url: %s", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, article.SourceURL, nil)
	if err != nil {
		return fmt.Errorf("error building request: %s", err)
	}
	resp, err := s.fetchClient.Do(req)
	if err != nil {
		return nrerrs.E(fmt.Errorf("error fetching article: %s", err), http.StatusBadGateway)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nrerrs.E(fmt.Sprintf("article page answered with %d", resp.StatusCode), http.StatusBadGateway)
	}

	// Strip it for readability and sanitize
	parser := readability.NewParser()
	page, err := parser.Parse(resp.Body, u)
	if err != nil {
		return nrerrs.E(fmt.Errorf("error parsing article page: %s", err), http.StatusBadGateway)
	}

	sanitizer := htmlsanitizer.NewHTMLSanitizer()
	contents, err := sanitizer.SanitizeString(page.Content)
	if err != nil {
		return fmt.Errorf("error sanitizing article page: %s", err)
	}

	ret := v1.ReaderView{
		ID:            article.ID,
		URL:           article.SourceURL,
		Title:         article.Title,
		Byline:        page.Byline,
		ReaderContent: contents,
	}
	// Add to the cache for next time
	s.readerCache.Add(article.ID, ret)

	return serverutil.WriteJSON(w, http.StatusOK, ret)
}
