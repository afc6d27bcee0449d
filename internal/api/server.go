// Package api serves the admin API: browsing what was ingested, triggering
// runs and resolving the moderation queue.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"

	v1 "github.com/jdholdren/newsroom/api/newsroom/v1"
	"github.com/jdholdren/newsroom/internal/moderation"
	"github.com/jdholdren/newsroom/internal/newsroom"
	"github.com/jdholdren/newsroom/internal/serverutil"
)

type (
	Sources interface {
		Sources() []newsroom.FeedSource
	}

	// Ingester runs a single ingestion and hands back its report.
	Ingester interface {
		Ingest(ctx context.Context) (newsroom.Report, error)
	}

	// IngestFunc adapts a function into an [Ingester].
	IngestFunc func(ctx context.Context) (newsroom.Report, error)

	// Server is the admin API.
	Server struct {
		*http.Server

		fetchClient *http.Client
		readerCache *lru.Cache[string, v1.ReaderView]

		repo     newsroom.Repository
		queue    moderation.Queue
		sources  Sources
		ingester Ingester
	}

	ServerConfig struct {
		Port       int
		AdminToken string
		CorsHeader string

		// Runs are triggered synchronously, so this needs to cover a whole run.
		WriteTimeout time.Duration
	}
)

func (f IngestFunc) Ingest(ctx context.Context) (newsroom.Report, error) {
	return f(ctx)
}

func NewServer(config ServerConfig, repo newsroom.Repository, sources Sources, ingester Ingester, metrics http.Handler) *Server {
	var (
		r        = serverutil.ErrRouter{Router: mux.NewRouter()}
		cache, _ = lru.New[string, v1.ReaderView](1024)
	)
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Minute
	}

	srvr := Server{
		fetchClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		readerCache: cache,
		repo:        repo,
		queue:       moderation.NewQueue(repo),
		sources:     sources,
		ingester:    ingester,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: config.WriteTimeout,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsHeader}),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type", "authorization"}),
			)(r),
		},
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	authed := serverutil.ErrRouter{Router: r.PathPrefix("/api").Subrouter()}
	authed.Use(requireTokenMiddleware(config.AdminToken))

	authed.HandleFuncE("/sources", srvr.getSources).Methods(http.MethodGet)

	// Articles
	authed.HandleFuncE("/articles", srvr.getArticles).Methods(http.MethodGet)
	authed.HandleFuncE("/articles/{articleID}", srvr.getArticle).Methods(http.MethodGet)
	authed.HandleFuncE("/articles/{articleID}/reader", srvr.getReaderView).Methods(http.MethodGet)

	// Runs
	authed.HandleFuncE("/runs", srvr.postRuns).Methods(http.MethodPost)
	authed.HandleFuncE("/runs", srvr.getRuns).Methods(http.MethodGet)
	authed.HandleFuncE("/runs/{runID}", srvr.getRun).Methods(http.MethodGet)

	// Moderation
	authed.HandleFuncE("/moderation", srvr.getModeration).Methods(http.MethodGet)
	authed.HandleFuncE("/moderation/{itemID}:approve", srvr.postApprove).Methods(http.MethodPost)
	authed.HandleFuncE("/moderation/{itemID}:reject", srvr.postReject).Methods(http.MethodPost)

	authed.HandleFuncE("/stats", srvr.getStats).Methods(http.MethodGet)

	slog.Debug("configured admin server", "port", config.Port)

	return &srvr
}

func (s Server) getSources(w http.ResponseWriter, r *http.Request) error {
	resp := v1.SourceList{Sources: []v1.Source{}}
	for _, src := range s.sources.Sources() {
		resp.Sources = append(resp.Sources, v1.Source{
			Name:     src.Name,
			URL:      src.URL,
			Category: src.Category,
			Priority: string(src.Priority),
		})
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

func (s Server) getStats(w http.ResponseWriter, r *http.Request) error {
	stats, err := s.repo.Stats(r.Context())
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, stats)
}
