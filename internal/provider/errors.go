// Package provider holds what the third-party API clients share.
package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is returned by provider clients when an API call completes with a
// non-success status or an unsuccessful response envelope.
type Error struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Op, e.StatusCode, e.Message)
}

// Retryable reports whether repeating the call may succeed. Client errors
// other than rate limiting are permanent.
func (e *Error) Retryable() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict reports whether err is a provider 409.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

// IsPermanent reports whether err is a provider error that retrying will not fix.
func IsPermanent(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return !perr.Retryable()
	}
	return false
}

func hasStatus(err error, status int) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.StatusCode == status
}
