package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the submission module.
type Metrics struct {
	// Individual attempt durations by outcome
	AttemptDuration *prometheus.HistogramVec

	// Finished submissions by error class ("ok" for success)
	SubmissionOutcome *prometheus.CounterVec

	// Attempts consumed per finished submission
	AttemptsPerSubmission prometheus.Histogram
}

// New creates a Metrics instance with all submission module metrics registered.
func New() *Metrics {
	return &Metrics{
		AttemptDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "currency_detect_attempt_duration_seconds",
			Help:    "Duration of individual recognition attempts by outcome",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}), // outcome: "ok", "timeout", "network", "server", "other"

		SubmissionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "currency_detect_submissions_total",
			Help: "Total finished submissions by result class",
		}, []string{"result"}),

		AttemptsPerSubmission: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "currency_detect_attempts_per_submission",
			Help:    "Number of attempts consumed per finished submission",
			Buckets: []float64{1, 2, 3},
		}),
	}
}

// ObserveAttempt records the duration of one recognition attempt.
func (m *Metrics) ObserveAttempt(outcome string, d time.Duration) {
	if m != nil {
		m.AttemptDuration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

// IncrementSubmission records a finished submission by result class.
func (m *Metrics) IncrementSubmission(result string) {
	if m != nil {
		m.SubmissionOutcome.WithLabelValues(result).Inc()
	}
}

// ObserveAttempts records how many attempts a submission consumed.
func (m *Metrics) ObserveAttempts(n int) {
	if m != nil {
		m.AttemptsPerSubmission.Observe(float64(n))
	}
}
