package worker

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	nrerrs "github.com/jdholdren/newsroom/internal/errors"
)

// Error types
//
// These are error types in the temporal sense, not the general "go" error types sense.
// They are used since between activities error types are marshaled and type information is lost.
const (
	errTypeInternal  = "internal"
	errTypeRateLimit = "rateLimit"
)

// Unwraps the application error from temporal into an API error if possible.
//
// Returns true if the error carried one in its details.
func asNewsroomErr(err error, nrErr **nrerrs.Error) bool {
	if err == nil {
		return false
	}

	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || !appErr.HasDetails() {
		return false
	}
	return appErr.Details(nrErr) == nil
}
