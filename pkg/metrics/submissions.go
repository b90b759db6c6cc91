package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SubmissionMetrics records submission pipeline outcomes and remote call results.
type SubmissionMetrics struct {
	submissions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	gateway     *prometheus.CounterVec
}

// NewSubmissionMetrics registers the submission metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewSubmissionMetrics(reg prometheus.Registerer) *SubmissionMetrics {
	if reg == nil {
		return &SubmissionMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wishlist_submissions_total",
		Help: "Wishlist submissions by source and terminal status.",
	}, []string{"source", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wishlist_submission_duration_seconds",
		Help:    "Time spent converting a wishlist into a draft order.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"source"})
	gateway := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wishlist_gateway_requests_total",
		Help: "Shopify Admin API calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(submissions, duration, gateway)
	return &SubmissionMetrics{
		submissions: submissions,
		duration:    duration,
		gateway:     gateway,
	}
}

// ObserveSubmission counts a finished submission and its duration.
func (m *SubmissionMetrics) ObserveSubmission(source, status string, elapsed time.Duration) {
	if m == nil || m.submissions == nil {
		return
	}
	m.submissions.WithLabelValues(normalizeLabel(source), normalizeLabel(status)).Inc()
	m.duration.WithLabelValues(normalizeLabel(source)).Observe(elapsed.Seconds())
}

// IncGateway counts one remote operation.
func (m *SubmissionMetrics) IncGateway(operation, outcome string) {
	if m == nil || m.gateway == nil {
		return
	}
	m.gateway.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
