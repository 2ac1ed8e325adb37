package itemserver

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/listsync/internal/itemserver"

// HTTPMetrics records per-route request counts, latencies and the number
// of requests in flight.
type HTTPMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewHTTPMetrics creates the request instruments on mp, or on the global
// provider when mp is nil. An instrument that cannot be created is replaced
// by a no-op so the middleware never has to check.
func NewHTTPMetrics(mp metric.MeterProvider, logger *zap.Logger) *HTTPMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := mp.Meter(instrumentationName)
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	var errs []error
	m := &HTTPMetrics{}

	var err error
	if m.requests, err = meter.Int64Counter("listsync.http.requests_total",
		metric.WithDescription("Item API requests by method, route and status code."),
		metric.WithUnit("{request}")); err != nil {
		errs = append(errs, err)
		m.requests, _ = fallback.Int64Counter("requests")
	}
	if m.latency, err = meter.Float64Histogram("listsync.http.request_duration_seconds",
		metric.WithDescription("Item API latency by method, route and status code."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5)); err != nil {
		errs = append(errs, err)
		m.latency, _ = fallback.Float64Histogram("latency")
	}
	if m.inFlight, err = meter.Int64UpDownCounter("listsync.http.active_requests",
		metric.WithDescription("Item API requests currently being served."),
		metric.WithUnit("{request}")); err != nil {
		errs = append(errs, err)
		m.inFlight, _ = fallback.Int64UpDownCounter("in_flight")
	}

	if err := errors.Join(errs...); err != nil {
		logger.Warn("some HTTP instruments are disabled", zap.Error(err))
	}
	return m
}

// MetricsMiddleware records one observation per request. Requests are
// labelled with the registered route pattern, never the raw path, so item
// ids stay out of label values.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			m.inFlight.Add(ctx, 1)
			defer m.inFlight.Add(ctx, -1)

			began := time.Now()
			if err := next(c); err != nil {
				// Resolve the status before it is observed.
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			labels := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("route", route),
				attribute.Int("status", c.Response().Status),
			)
			m.requests.Add(ctx, 1, labels)
			m.latency.Record(ctx, time.Since(began).Seconds(), labels)
			return nil
		}
	}
}
