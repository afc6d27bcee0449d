package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	nrerrs "github.com/jdholdren/newsroom/internal/errors"
	"github.com/jdholdren/newsroom/internal/serverutil"
)

// Rejects any request that doesn't carry the admin token as a bearer token.
func requireTokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				_ = serverutil.WriteJSON(w, http.StatusUnauthorized, nrerrs.E("missing or invalid token", http.StatusUnauthorized))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
