package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics registers the gateway's request counters/histogram with reg
// and returns a gin.HandlerFunc that records every request against
// them. reg is exposed separately at GET /metrics via promhttp.
func Metrics(reg *prometheus.Registry) gin.HandlerFunc {
	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "x402_gateway_http_requests_total",
		Help: "Total HTTP requests handled by the gateway, by path/method/status.",
	}, []string{"path", "method", "status"})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "x402_gateway_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds, by path/method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method"})

	reg.MustRegister(requestsTotal, requestDuration)

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requestsTotal.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
