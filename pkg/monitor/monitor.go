package monitor

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal 记录 HTTP 请求总量
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration 记录 HTTP 请求耗时
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: []float64{0.1, 0.3, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method", "path"},
	)

	initOnce sync.Once
)

// Init 初始化并注册监控指标, 可重复调用
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		InitReviewMetrics()
	})
}

// PrometheusMiddleware returns a gin middleware for monitoring
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath() // 路由模板 /api/v1/reviews/:id

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		if path != "" {
			HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
			HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
		}
	}
}

// The helpers below are no-ops until Init has run, so engine packages can record
// metrics unconditionally.

func SecurityDecision(decision string) {
	if Review != nil {
		Review.SecurityCheckTotal.WithLabelValues(decision).Inc()
	}
}

func SecurityFailure(kind string) {
	if Review != nil {
		Review.SecurityCheckFailures.WithLabelValues(kind).Inc()
	}
}

func NormalizeError() {
	if Review != nil {
		Review.NormalizeErrors.Inc()
	}
}

func Finding(code int, severity string) {
	if Review != nil {
		Review.FindingsTotal.WithLabelValues(strconv.Itoa(code), severity).Inc()
	}
}

func StaleDiscard(pipeline string) {
	if Review != nil {
		Review.StaleDiscards.WithLabelValues(pipeline).Inc()
	}
}

func BestEffortFailure(stage string) {
	if Review != nil {
		Review.BestEffortFailures.WithLabelValues(stage).Inc()
	}
}

func Submission(chain, level string) {
	if Review != nil {
		Review.SubmissionsTotal.WithLabelValues(chain, level).Inc()
	}
}

// Timer starts a pipeline duration measurement; call the returned func when done.
func Timer(pipeline string) func() {
	if Review == nil {
		return func() {}
	}
	t := prometheus.NewTimer(Review.PipelineDuration.WithLabelValues(pipeline))
	return func() { t.ObserveDuration() }
}
