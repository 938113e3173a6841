package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitforge",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fitforge",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsConfig configures the Prometheus request metrics middleware.
type MetricsConfig struct {
	SkipPaths []string
}

// Metrics records a counter and duration histogram per request.
func Metrics(config MetricsConfig) fiber.Handler {
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = true
	}

	return func(c fiber.Ctx) error {
		if skip[c.Path()] {
			return c.Next()
		}

		timer := prometheus.NewTimer(
			httpRequestDuration.WithLabelValues(c.Method(), c.Path()),
		)
		err := c.Next()
		timer.ObserveDuration()

		httpRequestsTotal.WithLabelValues(
			c.Method(),
			c.Path(),
			strconv.Itoa(c.Response().StatusCode()),
		).Inc()

		return err
	}
}

// PrometheusHandler exposes the default registry in text format.
func PrometheusHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
