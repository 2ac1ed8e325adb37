package itemserver

import (
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// FaultRequest is the body of POST /_faults. The next Count item requests
// fail with Status. A zero Count clears any pending faults.
type FaultRequest struct {
	Status int `json:"status"`
	Count  int `json:"count"`
}

// faults injects failures into item routes so clients can exercise their
// retry and rollback paths against a real server.
type faults struct {
	mu        sync.Mutex
	status    int
	remaining int
}

func (f *faults) set(status, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.remaining = count
}

// next consumes one pending fault and returns its status, or 0.
func (f *faults) next() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remaining <= 0 {
		return 0
	}
	f.remaining--
	return f.status
}

func (f *faults) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.HasPrefix(c.Path(), "/items") {
				return next(c)
			}
			if status := f.next(); status != 0 {
				return echo.NewHTTPError(status, "injected fault")
			}
			return next(c)
		}
	}
}

func (s *Server) handleFaults(c echo.Context) error {
	var req FaultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Count > 0 && (req.Status < 400 || req.Status > 599) {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be 4xx or 5xx")
	}
	s.faults.set(req.Status, req.Count)
	s.logger.Info("fault injection configured",
		zap.Int("status", req.Status),
		zap.Int("count", req.Count))
	return c.NoContent(http.StatusNoContent)
}
