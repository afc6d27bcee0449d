package api

import (
	"net/http"

	"github.com/gorilla/mux"

	v1 "github.com/jdholdren/newsroom/api/newsroom/v1"
	"github.com/jdholdren/newsroom/internal/newsroom"
	"github.com/jdholdren/newsroom/internal/serverutil"
)

func apiModerationItem(item newsroom.ModerationItem) v1.ModerationItem {
	return v1.ModerationItem{
		ID:         item.ID,
		ArticleID:  item.ArticleID,
		Reason:     item.Reason,
		Status:     string(item.Status),
		CreatedAt:  item.CreatedAt,
		ResolvedAt: item.ResolvedAt,
	}
}

// Lists the items still waiting on a decision.
func (s Server) getModeration(w http.ResponseWriter, r *http.Request) error {
	limit, offset := parsePaginationParams(r)
	items, total, err := s.queue.Pending(r.Context(), uint64(limit), uint64(offset))
	if err != nil {
		return err
	}

	resp := v1.ModerationList{
		Items:      make([]v1.ModerationItem, 0, len(items)),
		Pagination: pagination(limit, offset, total),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, apiModerationItem(item))
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

func (s Server) postApprove(w http.ResponseWriter, r *http.Request) error {
	item, err := s.queue.Approve(r.Context(), mux.Vars(r)["itemID"])
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, apiModerationItem(item))
}

func (s Server) postReject(w http.ResponseWriter, r *http.Request) error {
	item, err := s.queue.Reject(r.Context(), mux.Vars(r)["itemID"])
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, apiModerationItem(item))
}
