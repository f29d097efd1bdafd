package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHelpersAreSafeBeforeInit(t *testing.T) {
	saved := Review
	Review = nil
	defer func() { Review = saved }()

	assert.NotPanics(t, func() {
		SecurityDecision("pass")
		SecurityFailure("timeout")
		NormalizeError()
		Finding(3006, "forbidden")
		StaleDiscard("explain")
		BestEffortFailure("block")
		Submission("1", "normal")
		Timer("explain")()
	})
}

func TestFindingCounter(t *testing.T) {
	saved := Review
	Review = newReviewMetrics(promauto.With(prometheus.NewRegistry()))
	defer func() { Review = saved }()

	Finding(3001, "forbidden")
	Finding(3001, "forbidden")
	Finding(3004, "warn")

	assert.Equal(t, 2.0, testutil.ToFloat64(Review.FindingsTotal.WithLabelValues("3001", "forbidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Review.FindingsTotal.WithLabelValues("3004", "warn")))
}
