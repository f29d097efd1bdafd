package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ReviewMetrics 定义交易审核流程的业务指标
type ReviewMetrics struct {
	SecurityCheckTotal    *prometheus.CounterVec
	SecurityCheckFailures *prometheus.CounterVec
	NormalizeErrors       prometheus.Counter
	FindingsTotal         *prometheus.CounterVec
	StaleDiscards         *prometheus.CounterVec
	PipelineDuration      *prometheus.HistogramVec
	SubmissionsTotal      *prometheus.CounterVec
	BestEffortFailures    *prometheus.CounterVec
}

// Review is nil until InitReviewMetrics runs; callers go through the helpers below.
var Review *ReviewMetrics

func InitReviewMetrics() {
	Review = newReviewMetrics(promauto.With(prometheus.DefaultRegisterer))
}

func newReviewMetrics(f promauto.Factory) *ReviewMetrics {
	return &ReviewMetrics{
		SecurityCheckTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "review_security_check_total",
			Help: "Security check outcomes by decision",
		}, []string{"decision"}),
		SecurityCheckFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "review_security_check_failures_total",
			Help: "Security engine calls that failed and degraded to pass",
		}, []string{"kind"}),
		NormalizeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "review_normalize_errors_total",
			Help: "Transaction fields that could not be normalized",
		}),
		FindingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "review_findings_total",
			Help: "Risk gate findings by code and severity",
		}, []string{"code", "severity"}),
		StaleDiscards: f.NewCounterVec(prometheus.CounterOpts{
			Name: "review_stale_pipeline_discards_total",
			Help: "Pipeline results dropped because a newer update superseded them",
		}, []string{"pipeline"}),
		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "review_pipeline_duration_seconds",
			Help:    "Duration of review pipelines",
			Buckets: prometheus.DefBuckets,
		}, []string{"pipeline"}),
		SubmissionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "review_submissions_total",
			Help: "Approved submissions by chain and gas level",
		}, []string{"chain", "level"}),
		BestEffortFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "review_best_effort_failures_total",
			Help: "Non-fatal collaborator failures replaced by a fallback",
		}, []string{"stage"}),
	}
}
