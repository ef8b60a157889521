package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_portal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_portal_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// ActiveAttempts 当前在内存中计时的答题会话数
	ActiveAttempts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_portal_active_attempts",
			Help: "Number of quiz attempts currently held by the session manager",
		},
	)

	AttemptTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_portal_attempt_transitions_total",
			Help: "Quiz attempt state transitions",
		},
		[]string{"state"},
	)

	AutoSubmits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_portal_auto_submits_total",
			Help: "Submissions triggered by the countdown reaching zero",
		},
		[]string{"result"},
	)

	StorageDegraded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_portal_attempt_storage_degraded_total",
			Help: "Attempts that fell back to memory-only because the durable record could not be written",
		},
	)

	BackendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_portal_backend_request_duration_seconds",
			Help:    "Duration of calls to the quiz backend",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"operation", "status"},
	)
)

func Init() {
	prometheus.MustRegister(
		RequestCounter,
		RequestDuration,
		ActiveAttempts,
		AttemptTransitions,
		AutoSubmits,
		StorageDegraded,
		BackendDuration,
	)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

// ObserveBackend records one backend call started at start.
func ObserveBackend(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	BackendDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
