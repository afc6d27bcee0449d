package serverutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nrerrs "github.com/jdholdren/newsroom/internal/errors"
	"github.com/jdholdren/newsroom/internal/newsroom"
)

func TestHandlerFuncE(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "structured",
			err:     nrerrs.E("bad input", http.StatusBadRequest),
			status:  http.StatusBadRequest,
			message: "bad input",
		},
		{
			name:    "not found",
			err:     fmt.Errorf("error getting article: %w", newsroom.ErrNotFound),
			status:  http.StatusNotFound,
			message: "error getting article: not found",
		},
		{
			name:    "conflict",
			err:     newsroom.ErrConflict,
			status:  http.StatusConflict,
			message: "conflict",
		},
		{
			name:    "anything else is hidden",
			err:     errors.New("database exploded"),
			status:  http.StatusInternalServerError,
			message: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := HandlerFuncE(func(w http.ResponseWriter, r *http.Request) error {
				return tt.err
			})
			rec := httptest.NewRecorder()
			AccessLogMiddleware(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body struct {
				Message string `json:"message"`
				Status  int    `json:"status"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.message, body.Message)
			assert.Equal(t, tt.status, body.Status)
		})
	}
}

func TestHandlerFuncE_NoError(t *testing.T) {
	h := HandlerFuncE(func(w http.ResponseWriter, r *http.Request) error {
		return WriteJSON(w, http.StatusCreated, map[string]string{"ok": "yes"})
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
}
