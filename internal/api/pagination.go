package api

import (
	"net/http"
	"strconv"

	v1 "github.com/jdholdren/newsroom/api/newsroom/v1"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// parsePaginationParams parses pagination parameters from an HTTP request.
// Supports offset-based pagination (?offset=20&limit=10).
func parsePaginationParams(r *http.Request) (int, int) {
	query := r.URL.Query()

	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	offset, _ := strconv.Atoi(query.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

func pagination(limit, offset, total int) v1.Pagination {
	return v1.Pagination{
		Limit:  limit,
		Offset: offset,
		Total:  total,
	}
}
