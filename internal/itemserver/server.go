// Package itemserver is an in-memory implementation of the list-item HTTP
// API. It backs local development and the remote client's tests.
package itemserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/remote"
)

// Server serves the item API.
type Server struct {
	echo    *echo.Echo
	store   *Store
	faults  *faults
	metrics *HTTPMetrics
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// MeterProvider receives the HTTP request metrics. Nil means the otel
	// global provider.
	MeterProvider metric.MeterProvider
}

// NewServer creates a server over store. A nil store starts empty.
func NewServer(store *Store, logger *zap.Logger, cfg *Config) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if store == nil {
		store = NewStore()
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		store:   store,
		faults:  &faults{},
		metrics: NewHTTPMetrics(cfg.MeterProvider, logger),
		logger:  logger,
		config:  cfg,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger())
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(s.faults.middleware())

	s.registerRoutes()
	return s, nil
}

// requestLogger logs one line per request once the handler's error has been
// turned into a response.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			began := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			req, res := c.Request(), c.Response()
			s.logger.Info("http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", res.Status),
				zap.Duration("duration", time.Since(began)),
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.POST("/_faults", s.handleFaults)

	items := s.echo.Group("/items")
	items.GET("", s.handleList)
	items.POST("", s.handleCreate)
	items.PATCH("/:id", s.handleUpdate)
	items.PATCH("/:id/toggle", s.handleToggle)
	items.DELETE("/:id", s.handleDelete)
}

// Handler exposes the router, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleList(c echo.Context) error {
	scope := item.Scope{UserID: c.QueryParam("userId"), ListID: c.QueryParam("scope")}
	if err := scope.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "userId and scope are required")
	}
	items := s.store.List(scope)
	out := make([]remote.ItemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, remote.FromItem(it))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreate(c echo.Context) error {
	var req remote.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	scope := item.Scope{UserID: req.UserID, ListID: req.Scope}
	it, created, err := s.store.Create(scope, req.Text, req.Priority, idempotencyKey(c))
	if err != nil {
		return s.storeError(err)
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
		s.logger.Debug("create replay ignored", zap.String("item_id", it.ID))
	}
	return c.JSON(status, remote.FromItem(it))
}

func (s *Server) handleUpdate(c echo.Context) error {
	var req remote.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	it, err := s.store.Update(c.Param("id"), req.Text, idempotencyKey(c))
	if err != nil {
		return s.storeError(err)
	}
	return c.JSON(http.StatusOK, remote.FromItem(it))
}

func (s *Server) handleToggle(c echo.Context) error {
	it, err := s.store.Toggle(c.Param("id"), idempotencyKey(c))
	if err != nil {
		return s.storeError(err)
	}
	return c.JSON(http.StatusOK, remote.FromItem(it))
}

func (s *Server) handleDelete(c echo.Context) error {
	if err := s.store.Delete(c.Param("id"), idempotencyKey(c)); err != nil {
		return s.storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func idempotencyKey(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get(remote.IdempotencyKeyHeader))
}

func (s *Server) storeError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "item not found")
	case errors.Is(err, item.ErrEmptyText):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "text is required")
	case errors.Is(err, item.ErrTextTooLong):
		return echo.NewHTTPError(http.StatusUnprocessableEntity,
			fmt.Sprintf("text must be at most %d characters", item.MaxTextLength))
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

// handleError writes every failure as a remote.ErrorResponse.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "internal error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	} else {
		s.logger.Error("unhandled request error", zap.Error(err))
	}

	body := remote.ErrorResponse{
		Error:   strings.ToLower(strings.ReplaceAll(http.StatusText(code), " ", "_")),
		Message: msg,
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if werr := c.JSON(code, body); werr != nil {
		s.logger.Warn("failed to write error response", zap.Error(werr))
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting item server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down item server")
	return s.echo.Shutdown(ctx)
}
