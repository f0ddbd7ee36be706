package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the workflow module.
type Metrics struct {
	Submissions    *prometheus.CounterVec
	Approvals      prometheus.Counter
	Rejections     prometheus.Counter
	CasesCompleted prometheus.Counter
	GatingDenied   prometheus.Counter
	SubmitDuration prometheus.Histogram
	ReviewDuration prometheus.Histogram
}

// New creates a new Metrics instance with all workflow module metrics
// registered.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clearance_submissions_total",
			Help: "Submissions accepted, by kind (new, resubmission, edit)",
		}, []string{"kind"}),
		Approvals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clearance_approvals_total",
			Help: "Submissions approved",
		}),
		Rejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clearance_rejections_total",
			Help: "Submissions rejected",
		}),
		CasesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clearance_cases_completed_total",
			Help: "Cases that reached full completion",
		}),
		GatingDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clearance_gating_denied_total",
			Help: "Submissions denied by prerequisite gating",
		}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "clearance_submit_duration_seconds",
			Help:    "Duration of Submit operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ReviewDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "clearance_review_duration_seconds",
			Help:    "Duration of Approve/Reject operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// RecordSubmission counts one accepted submission by kind.
func (m *Metrics) RecordSubmission(kind string) {
	m.Submissions.WithLabelValues(kind).Inc()
}

// ObserveSubmit records the duration of a Submit operation.
func (m *Metrics) ObserveSubmit(start time.Time) {
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}

// ObserveReview records the duration of an Approve or Reject operation.
func (m *Metrics) ObserveReview(start time.Time) {
	m.ReviewDuration.Observe(time.Since(start).Seconds())
}
