// Package syncerr classifies failures from the remote list service and the
// local sync layer into a small, closed set of kinds.
package syncerr

import (
	"errors"
	"fmt"
)

// Sentinel errors understood by Classify. Wrap them with fmt.Errorf("%w").
var (
	// ErrOffline marks an operation attempted while the host reports no
	// connectivity.
	ErrOffline = errors.New("offline")

	// ErrUnauthorized marks a missing or rejected credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation marks input the remote service or the engine rejected.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a target that no longer exists.
	ErrNotFound = errors.New("not found")

	// ErrTimeout marks an operation that ran out of time.
	ErrTimeout = errors.New("timed out")
)

// HTTPError is returned by the remote client for every non-2xx response.
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
	// Message is the human-readable message parsed from the response body,
	// if any.
	Message string
	// Body is the raw (truncated) response body.
	Body string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	if msg == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// IsClientError reports whether the status is in the 4xx range.
func (e *HTTPError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
