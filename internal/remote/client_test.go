package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/syncerr"
)

var scope = item.Scope{UserID: "u1", ListID: "c1"}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, Token: "s3cret"}, nil)
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_List(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/items", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("userId"))
		assert.Equal(t, "c1", r.URL.Query().Get("scope"))
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, []ItemDTO{
			{ID: "a", UserID: "u1", Scope: "c1", Text: "milk"},
			{ID: "b", UserID: "u1", Scope: "c1", Text: "eggs", Completed: true, Priority: item.PriorityHigh},
		})
	})

	items, err := c.List(context.Background(), scope)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, scope, items[0].Scope)
	assert.Equal(t, item.PriorityMedium, items[0].Priority, "missing priority defaults to medium")
	assert.True(t, items[1].Completed)
	assert.True(t, items[1].Sync.IsClean())
}

func TestClient_Create(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "op-1", r.Header.Get(IdempotencyKeyHeader))

		var req CreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, CreateRequest{UserID: "u1", Scope: "c1", Text: "bread"}, req)

		writeJSON(t, w, http.StatusCreated, ItemDTO{ID: "srv-1", UserID: "u1", Scope: "c1", Text: "bread"})
	})

	ctx := WithIdempotencyKey(context.Background(), "op-1")
	it, err := c.Create(ctx, scope, "bread", "")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", it.ID)
}

func TestClient_UpdateToggleDelete(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.EscapedPath())
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			writeJSON(t, w, http.StatusOK, ItemDTO{ID: "a b", UserID: "u1", Scope: "c1", Text: "x"})
		}
	})
	ctx := context.Background()

	_, err := c.Update(ctx, "a b", "x")
	require.NoError(t, err)
	_, err = c.Toggle(ctx, "a b")
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "a b"))

	assert.Equal(t, []string{
		"PATCH /items/a%20b",
		"PATCH /items/a%20b/toggle",
		"DELETE /items/a%20b",
	}, seen)
}

func TestClient_ErrorBodyParsed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, ErrorResponse{Error: "validation", Message: "text must not be empty"})
	})

	_, err := c.Create(context.Background(), scope, "x", "")
	var httpErr *syncerr.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, "text must not be empty", httpErr.Message)
	assert.Equal(t, syncerr.KindValidation, syncerr.Classify(err).Kind)
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	err := c.Delete(context.Background(), "a")
	var httpErr *syncerr.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "upstream exploded", httpErr.Body)
	assert.Empty(t, httpErr.Message)
	assert.Equal(t, syncerr.KindServer, syncerr.Classify(err).Kind)
}

func TestClient_TransportFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url, Timeout: time.Second}, nil)
	require.NoError(t, err)

	_, err = c.List(context.Background(), scope)
	require.Error(t, err)
	assert.Equal(t, syncerr.KindNetwork, syncerr.Classify(err).Kind)
}

func TestClient_RateLimiterHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, []ItemDTO{})
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, RateLimit: 0.001, Burst: 1}, nil)
	require.NoError(t, err)

	_, err = c.List(context.Background(), scope)
	require.NoError(t, err, "burst allows the first request")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.List(ctx, scope)
	assert.Error(t, err)
}

func TestNewClient_BaseURL(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.Error(t, err)

	c, err := NewClient(Config{BaseURL: "localhost:8080/api/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api", c.BaseURL())
}
