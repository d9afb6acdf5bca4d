package httpapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the HTTP-level Prometheus metrics.
type Metrics struct {
	requestsTotal *prometheus.CounterVec
	requestDur    *prometheus.HistogramVec
}

// NewMetrics creates and registers the HTTP metrics on the registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finrag_http_requests_total",
				Help: "Total HTTP requests by method, endpoint, and status code.",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "finrag_http_request_duration_seconds",
				Help: "HTTP request duration in seconds by method, endpoint, and status code.",
				// Streamed answers run for seconds, not milliseconds.
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "endpoint", "status"},
		),
	}
	reg.MustRegister(m.requestsTotal, m.requestDur)
	return m
}

// Middleware returns an Echo middleware recording request metrics.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method
			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "/"
			}

			m.requestsTotal.WithLabelValues(method, endpoint, status).Inc()
			m.requestDur.WithLabelValues(method, endpoint, status).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
