package api

import (
	"net/http"

	"github.com/gorilla/mux"

	v1 "github.com/jdholdren/newsroom/api/newsroom/v1"
	"github.com/jdholdren/newsroom/internal/newsroom"
	"github.com/jdholdren/newsroom/internal/serverutil"
)

type RunList struct {
	Runs       []newsroom.Report `json:"runs"`
	Pagination v1.Pagination     `json:"pagination"`
}

// Runs an ingestion right away and waits on its report.
func (s Server) postRuns(w http.ResponseWriter, r *http.Request) error {
	report, err := s.ingester.Ingest(r.Context())
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusCreated, report)
}

func (s Server) getRuns(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	limit, offset := parsePaginationParams(r)

	total, err := s.repo.CountRuns(ctx)
	if err != nil {
		return err
	}
	runs, err := s.repo.Runs(ctx, uint64(limit), uint64(offset))
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, RunList{
		Runs:       runs,
		Pagination: pagination(limit, offset, total),
	})
}

func (s Server) getRun(w http.ResponseWriter, r *http.Request) error {
	run, err := s.repo.Run(r.Context(), mux.Vars(r)["runID"])
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, run)
}
