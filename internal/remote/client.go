// Package remote is the HTTP client for the list-item service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/syncerr"
)

// Service is the remote list-item API.
type Service interface {
	List(ctx context.Context, scope item.Scope) ([]item.Item, error)
	Create(ctx context.Context, scope item.Scope, text string, priority item.Priority) (item.Item, error)
	Update(ctx context.Context, id, text string) (item.Item, error)
	Toggle(ctx context.Context, id string) (item.Item, error)
	Delete(ctx context.Context, id string) error
}

// Ensure Client implements Service at compile time.
var _ Service = (*Client)(nil)

const (
	defaultUserAgent = "listsync/0.1"
	defaultTimeout   = 10 * time.Second
	maxErrorBody     = 4 << 10

	// IdempotencyKeyHeader carries the queued operation id on replays.
	IdempotencyKeyHeader = "Idempotency-Key"
)

type idempotencyKey struct{}

// WithIdempotencyKey attaches key to requests made with ctx.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	UserAgent string
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
}

// Client talks to the list-item HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	token     string
	userAgent string
	limiter   *rate.Limiter
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: timeout},
		token:     cfg.Token,
		userAgent: ua,
		tracer:    otel.Tracer("github.com/fyrsmithlabs/listsync/internal/remote"),
		logger:    logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// List fetches every item visible to scope.
func (c *Client) List(ctx context.Context, scope item.Scope) ([]item.Item, error) {
	values := url.Values{}
	values.Set("userId", scope.UserID)
	values.Set("scope", scope.ListID)
	rel := &url.URL{Path: "/items", RawQuery: values.Encode()}

	var payload []ItemDTO
	if err := c.doURL(ctx, "List", http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	items := make([]item.Item, 0, len(payload))
	for _, d := range payload {
		items = append(items, d.ToItem())
	}
	return items, nil
}

// Create adds an item and returns the canonical representation.
func (c *Client) Create(ctx context.Context, scope item.Scope, text string, priority item.Priority) (item.Item, error) {
	body := CreateRequest{UserID: scope.UserID, Scope: scope.ListID, Text: text, Priority: priority}
	var payload ItemDTO
	if err := c.do(ctx, "Create", http.MethodPost, "/items", body, &payload); err != nil {
		return item.Item{}, err
	}
	return payload.ToItem(), nil
}

// Update replaces an item's text.
func (c *Client) Update(ctx context.Context, id, text string) (item.Item, error) {
	var payload ItemDTO
	if err := c.doURL(ctx, "Update", http.MethodPatch, itemURL(id, ""), UpdateRequest{Text: text}, &payload); err != nil {
		return item.Item{}, err
	}
	return payload.ToItem(), nil
}

// Toggle flips an item's completed flag.
func (c *Client) Toggle(ctx context.Context, id string) (item.Item, error) {
	var payload ItemDTO
	if err := c.doURL(ctx, "Toggle", http.MethodPatch, itemURL(id, "/toggle"), nil, &payload); err != nil {
		return item.Item{}, err
	}
	return payload.ToItem(), nil
}

// Delete removes an item.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.doURL(ctx, "Delete", http.MethodDelete, itemURL(id, ""), nil, nil)
}

func itemURL(id, suffix string) *url.URL {
	return &url.URL{
		Path:    "/items/" + id + suffix,
		RawPath: "/items/" + url.PathEscape(id) + suffix,
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, body, dest any) error {
	rel := &url.URL{Path: path}
	return c.doURL(ctx, op, method, rel, body, dest)
}

func (c *Client) doURL(ctx context.Context, op, method string, rel *url.URL, body, dest any) (err error) {
	ctx, span := c.tracer.Start(ctx, "remote."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", rel.Path),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	reqURL := *c.baseURL
	reqURL.Path = c.baseURL.Path + rel.Path
	if rel.RawPath != "" {
		reqURL.RawPath = c.baseURL.EscapedPath() + rel.RawPath
	}
	reqURL.RawQuery = rel.RawQuery
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if key, ok := ctx.Value(idempotencyKey{}).(string); ok && key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode >= 400 {
		return c.errorFrom(resp, method, rel.Path)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) errorFrom(resp *http.Response, method, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	httpErr := &syncerr.HTTPError{
		StatusCode: resp.StatusCode,
		Method:     method,
		Path:       path,
		Body:       strings.TrimSpace(string(raw)),
	}
	var payload ErrorResponse
	if json.Unmarshal(raw, &payload) == nil {
		httpErr.Message = payload.Message
		if httpErr.Message == "" {
			httpErr.Message = payload.Error
		}
	}
	c.logger.Debug("remote error response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("message", httpErr.Message))
	return httpErr
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("remote base url is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
