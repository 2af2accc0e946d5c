// Package hakari provides a Go client for the Hakari evaluation metrics
// store and the merge protocol that upserts per-scenario metric data
// without losing keys written by other evaluators.
package hakari

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a non-2xx response. Status carries the HTTP status
// text (e.g. "404 Not Found"); Code and Message come from the server's
// error envelope when present.
type Error struct {
	StatusCode int
	Status     string
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("hakari: %s (%s): %s", e.Code, e.Status, e.Message)
}

func statusIs(err error, code int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == code
	}
	return false
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool { return statusIs(err, http.StatusNotFound) }

// IsUnauthorized returns true if the error is a 401.
func IsUnauthorized(err error) bool { return statusIs(err, http.StatusUnauthorized) }

// IsForbidden returns true if the error is a 403.
func IsForbidden(err error) bool { return statusIs(err, http.StatusForbidden) }

// IsRateLimited returns true if the error is a 429 (Too Many Requests).
func IsRateLimited(err error) bool { return statusIs(err, http.StatusTooManyRequests) }

// IsConflict returns true if the error is a 409.
func IsConflict(err error) bool { return statusIs(err, http.StatusConflict) }
