package itemserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/remote"
	"github.com/fyrsmithlabs/listsync/internal/syncerr"
)

var scope = item.Scope{UserID: "u1", ListID: "c1"}

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	server, err := NewServer(nil, zap.NewNop(), nil)
	require.NoError(t, err)
	return server
}

// setupClient runs the server behind httptest and returns a client for it.
func setupClient(t *testing.T) (*Server, *remote.Client) {
	t.Helper()
	server := setupTestServer(t)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	client, err := remote.NewClient(remote.Config{BaseURL: ts.URL}, zap.NewNop())
	require.NoError(t, err)
	return server, client
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server := setupTestServer(t)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8080, server.config.Port)
		assert.NotNil(t, server.store)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestItemLifecycle(t *testing.T) {
	_, client := setupClient(t)
	ctx := context.Background()

	created, err := client.Create(ctx, scope, "buy milk", "")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, item.IsTemporaryID(created.ID))
	assert.Equal(t, item.PriorityMedium, created.Priority)
	assert.Equal(t, scope, created.Scope)

	toggled, err := client.Toggle(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Completed)

	edited, err := client.Update(ctx, created.ID, "buy oat milk")
	require.NoError(t, err)
	assert.Equal(t, "buy oat milk", edited.Text)
	assert.True(t, edited.Completed)

	items, err := client.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, created.ID, items[0].ID)

	require.NoError(t, client.Delete(ctx, created.ID))
	items, err = client.List(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListIsScoped(t *testing.T) {
	server, client := setupClient(t)
	ctx := context.Background()

	_, _, err := server.store.Create(item.Scope{UserID: "u2", ListID: "c1"}, "theirs", "", "")
	require.NoError(t, err)
	_, err = client.Create(ctx, scope, "mine", "")
	require.NoError(t, err)

	items, err := client.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "mine", items[0].Text)
}

func TestValidationErrors(t *testing.T) {
	_, client := setupClient(t)
	ctx := context.Background()

	t.Run("empty text", func(t *testing.T) {
		_, err := client.Create(ctx, scope, "", "")
		c := syncerr.Classify(err)
		assert.Equal(t, syncerr.KindValidation, c.Kind)
		assert.Equal(t, "text is required", c.Message)
	})

	t.Run("text too long", func(t *testing.T) {
		_, err := client.Create(ctx, scope, strings.Repeat("x", item.MaxTextLength+1), "")
		var httpErr *syncerr.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := client.Toggle(ctx, "missing")
		assert.Equal(t, syncerr.KindNotFound, syncerr.Classify(err).Kind)
		assert.Equal(t, syncerr.KindNotFound, syncerr.Classify(client.Delete(ctx, "missing")).Kind)
	})

	t.Run("list without scope", func(t *testing.T) {
		_, err := client.List(ctx, item.Scope{})
		assert.Equal(t, syncerr.KindValidation, syncerr.Classify(err).Kind)
	})
}

func TestIdempotentReplay(t *testing.T) {
	server, client := setupClient(t)
	ctx := remote.WithIdempotencyKey(context.Background(), "op-1")

	first, err := client.Create(ctx, scope, "milk", "")
	require.NoError(t, err)
	second, err := client.Create(ctx, scope, "milk", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, server.store.Len())

	toggleCtx := remote.WithIdempotencyKey(context.Background(), "op-2")
	_, err = client.Toggle(toggleCtx, first.ID)
	require.NoError(t, err)
	again, err := client.Toggle(toggleCtx, first.ID)
	require.NoError(t, err)
	assert.True(t, again.Completed, "replayed toggle is not applied twice")

	deleteCtx := remote.WithIdempotencyKey(context.Background(), "op-3")
	require.NoError(t, client.Delete(deleteCtx, first.ID))
	assert.NoError(t, client.Delete(deleteCtx, first.ID))
}

func TestFaultInjection(t *testing.T) {
	server := setupTestServer(t)

	body, err := json.Marshal(FaultRequest{Status: http.StatusServiceUnavailable, Count: 2})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/_faults", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/health").Code, "health is never faulted")

	rec = get("/items?userId=u1&scope=c1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp remote.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "injected fault", resp.Message)

	assert.Equal(t, http.StatusServiceUnavailable, get("/items?userId=u1&scope=c1").Code)
	assert.Equal(t, http.StatusOK, get("/items?userId=u1&scope=c1").Code)
}

func TestFaultRequestValidation(t *testing.T) {
	server := setupTestServer(t)

	body, err := json.Marshal(FaultRequest{Status: 200, Count: 1})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/_faults", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
