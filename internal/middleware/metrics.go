package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messenger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	activeRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "messenger_http_active_requests",
			Help: "Number of currently active HTTP requests",
		},
	)

	wsSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "messenger_ws_sessions",
			Help: "Open WebSocket connections by kind (session, notifications)",
		},
		[]string{"kind"},
	)
)

// Metrics returns a gin middleware that collects Prometheus metrics.
// WebSocket upgrades are counted once here and tracked by TrackWebSocket.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		activeRequests.Inc()

		c.Next()

		activeRequests.Dec()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// TrackWebSocket increments the open-connection gauge for kind and returns
// the matching decrement.
func TrackWebSocket(kind string) func() {
	g := wsSessions.WithLabelValues(kind)
	g.Inc()
	return g.Dec
}
