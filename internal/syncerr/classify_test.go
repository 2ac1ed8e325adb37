package syncerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
	}{
		{name: "offline sentinel", err: ErrOffline, kind: KindNetwork, retryable: true},
		{name: "wrapped offline", err: fmt.Errorf("create item: %w", ErrOffline), kind: KindNetwork, retryable: true},
		{name: "connection refused", err: &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}, kind: KindNetwork, retryable: true},
		{name: "bare errno", err: syscall.ECONNRESET, kind: KindNetwork, retryable: true},
		{name: "401", err: &HTTPError{StatusCode: 401}, kind: KindAuth},
		{name: "403", err: &HTTPError{StatusCode: 403}, kind: KindAuth},
		{name: "unauthorized sentinel", err: ErrUnauthorized, kind: KindAuth},
		{name: "400", err: &HTTPError{StatusCode: 400}, kind: KindValidation},
		{name: "422", err: &HTTPError{StatusCode: 422}, kind: KindValidation},
		{name: "409 falls into validation", err: &HTTPError{StatusCode: 409}, kind: KindValidation},
		{name: "404", err: &HTTPError{StatusCode: 404}, kind: KindNotFound},
		{name: "410", err: &HTTPError{StatusCode: 410}, kind: KindNotFound},
		{name: "not found sentinel", err: fmt.Errorf("toggle: %w", ErrNotFound), kind: KindNotFound},
		{name: "408 is a client status", err: &HTTPError{StatusCode: 408}, kind: KindValidation},
		{name: "504", err: &HTTPError{StatusCode: 504}, kind: KindTimeout, retryable: true},
		{name: "deadline", err: context.DeadlineExceeded, kind: KindTimeout, retryable: true},
		{name: "client timeout", err: &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}, kind: KindTimeout, retryable: true},
		{name: "500", err: &HTTPError{StatusCode: 500}, kind: KindServer, retryable: true},
		{name: "503", err: &HTTPError{StatusCode: 503}, kind: KindServer, retryable: true},
		{name: "opaque error", err: errors.New("boom"), kind: KindServer, retryable: true},
		{name: "canceled", err: context.Canceled, kind: KindUnknown},
		{name: "nil", err: nil, kind: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.err)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.retryable, c.Retryable)
			assert.NotEmpty(t, c.Title)
			assert.NotEmpty(t, c.Message)
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	err := &HTTPError{StatusCode: 503, Message: "maintenance"}
	assert.Equal(t, Classify(err), Classify(err))
}

func TestClassify_PriorityOrder(t *testing.T) {
	// network outranks everything else, including a wrapped auth failure
	err := fmt.Errorf("%w: %w", ErrOffline, ErrUnauthorized)
	assert.Equal(t, KindNetwork, Classify(err).Kind)

	// auth outranks validation
	err = fmt.Errorf("%w: %w", ErrUnauthorized, ErrValidation)
	assert.Equal(t, KindAuth, Classify(err).Kind)
}

func TestClassify_ServiceMessage(t *testing.T) {
	c := Classify(&HTTPError{StatusCode: 400, Message: "text must be at most 200 characters"})
	assert.Equal(t, "text must be at most 200 characters", c.Message)

	// server messages are replaced with a generic one
	c = Classify(&HTTPError{StatusCode: 500, Message: "nil pointer dereference"})
	assert.NotContains(t, c.Message, "nil pointer")
}

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{StatusCode: 404, Method: "PATCH", Path: "/items/1", Message: "item not found"}
	assert.Equal(t, "PATCH /items/1: status 404: item not found", err.Error())
	assert.True(t, err.IsClientError())

	err = &HTTPError{StatusCode: 502, Method: "GET", Path: "/items"}
	assert.Equal(t, "GET /items: status 502", err.Error())
	assert.False(t, err.IsClientError())
}
