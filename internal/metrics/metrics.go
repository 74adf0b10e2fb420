package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "practiceroom_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "practiceroom_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	recordingOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "practiceroom_recording_operations_total",
		Help: "Recording operations by operation and result.",
	}, []string{"op", "result"})

	recordingUploadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "practiceroom_recording_upload_bytes",
		Help:    "Size of accepted recording uploads.",
		Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
	})

	initOnce sync.Once
)

// InitMetrics registers collectors with the default registry. Safe to call repeatedly.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			recordingOperationsTotal,
			recordingUploadBytes,
		)
	})
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveRecordingOp counts a recording operation outcome.
func ObserveRecordingOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	recordingOperationsTotal.WithLabelValues(op, result).Inc()
}

// ObserveUploadBytes records the size of a stored recording.
func ObserveUploadBytes(n int64) {
	recordingUploadBytes.Observe(float64(n))
}
