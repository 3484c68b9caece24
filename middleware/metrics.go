package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	checkoutInitiatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_initiated_total",
			Help: "Total number of checkout initiations",
		},
		[]string{"gateway"},
	)

	handoffServedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_handoff_served_total",
			Help: "Total number of gateway hand-offs served",
		},
		[]string{"gateway", "kind"},
	)

	paymentVerifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verified_total",
			Help: "Total number of callback verifications by outcome",
		},
		[]string{"gateway", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(checkoutInitiatedTotal)
	prometheus.MustRegister(handoffServedTotal)
	prometheus.MustRegister(paymentVerifiedTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordCheckoutInitiated(gateway string) {
	checkoutInitiatedTotal.WithLabelValues(gateway).Inc()
}

func RecordHandoffServed(gateway, kind string) {
	handoffServedTotal.WithLabelValues(gateway, kind).Inc()
}

func RecordPaymentVerified(gateway, outcome string) {
	paymentVerifiedTotal.WithLabelValues(gateway, outcome).Inc()
}
