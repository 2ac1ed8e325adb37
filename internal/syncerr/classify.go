package syncerr

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

// Kind is the category of a classified failure.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindAuth       Kind = "auth"
	KindValidation Kind = "validation"
	KindNotFound   Kind = "notFound"
	KindTimeout    Kind = "timeout"
	KindServer     Kind = "server"
	KindUnknown    Kind = "unknown"
)

// Classification is the user-facing description of a failure.
type Classification struct {
	Kind      Kind   `json:"kind"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

var titles = map[Kind]string{
	KindNetwork:    "Connection problem",
	KindAuth:       "Sign-in required",
	KindValidation: "Invalid input",
	KindNotFound:   "Item not found",
	KindTimeout:    "Request timed out",
	KindServer:     "Server error",
	KindUnknown:    "Something went wrong",
}

var defaultMessages = map[Kind]string{
	KindNetwork:    "Unable to reach the server. Check your connection and try again.",
	KindAuth:       "Your session has expired. Please sign in again.",
	KindValidation: "The request was rejected. Please check your input.",
	KindNotFound:   "This item no longer exists.",
	KindTimeout:    "The server took too long to respond. Please try again.",
	KindServer:     "The server could not complete the request. Please try again.",
	KindUnknown:    "The operation did not complete.",
}

// Classify maps err to a Classification. It is pure: the same error always
// yields the same result. Kinds are matched in priority order network,
// auth, validation, notFound, timeout, server.
func Classify(err error) Classification {
	kind := kindOf(err)
	c := Classification{
		Kind:      kind,
		Title:     titles[kind],
		Message:   defaultMessages[kind],
		Retryable: kind.Retryable(),
	}

	// Validation and not-found messages from the service are specific
	// enough to show as-is.
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" && (kind == KindValidation || kind == KindNotFound) {
		c.Message = httpErr.Message
	}
	return c
}

// Retryable reports whether failures of this kind are worth retrying.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindTimeout, KindServer:
		return true
	}
	return false
}

func kindOf(err error) Kind {
	if err == nil || errors.Is(err, context.Canceled) {
		return KindUnknown
	}

	status := 0
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.StatusCode
	}

	switch {
	case isNetwork(err):
		return KindNetwork
	case errors.Is(err, ErrUnauthorized),
		status == http.StatusUnauthorized,
		status == http.StatusForbidden:
		return KindAuth
	case errors.Is(err, ErrValidation),
		isClientStatus(status) && !isNotFoundStatus(status):
		return KindValidation
	case errors.Is(err, ErrNotFound), isNotFoundStatus(status):
		return KindNotFound
	case isTimeout(err, status):
		return KindTimeout
	}
	return KindServer
}

// isNetwork matches transport-level failures that are not timeouts.
func isNetwork(err error) bool {
	if errors.Is(err, ErrOffline) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return !netErr.Timeout()
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func isClientStatus(status int) bool { return status >= 400 && status < 500 }

func isNotFoundStatus(status int) bool {
	return status == http.StatusNotFound || status == http.StatusGone
}

// isTimeoutStatus matches upstream timeouts. 408 is a client status and
// stays with validation, so it is never retried.
func isTimeoutStatus(status int) bool {
	return status == http.StatusGatewayTimeout
}

func isTimeout(err error, status int) bool {
	if isTimeoutStatus(status) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
