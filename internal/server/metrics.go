package server

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/codecampus/campus-core/pkg/apperror"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Count of handled HTTP requests.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latency of handled HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// MetricsMiddleware records request counts and latencies labeled by the
// route pattern, not the raw URI, to keep cardinality bounded.
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" || path == "/metrics" {
				return err
			}
			// On error the handler has not written yet; derive the status
			// from the error the way the error handler will.
			status := c.Response().Status
			if err != nil {
				var appErr *apperror.Error
				var httpErr *echo.HTTPError
				switch {
				case errors.As(err, &appErr):
					status = appErr.HTTPStatus
				case errors.As(err, &httpErr):
					status = httpErr.Code
				default:
					status = 500
				}
			}
			method := c.Request().Method
			requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
