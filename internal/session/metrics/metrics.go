package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity session module.
type Metrics struct {
	// Bootstrap outcomes: ready_custom, ready_anonymous, fallback_anonymous,
	// config_error, auth_error
	Bootstraps *prometheus.CounterVec

	// Completed sign-outs
	SignOuts prometheus.Counter
}

// New creates a Metrics instance with all session module metrics registered.
func New() *Metrics {
	return &Metrics{
		Bootstraps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "currency_session_bootstraps_total",
			Help: "Total identity session bootstraps by outcome",
		}, []string{"outcome"}),

		SignOuts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "currency_session_signouts_total",
			Help: "Total completed sign-outs",
		}),
	}
}

// IncrementBootstrap records a bootstrap outcome.
func (m *Metrics) IncrementBootstrap(outcome string) {
	if m != nil {
		m.Bootstraps.WithLabelValues(outcome).Inc()
	}
}

// IncrementSignOut records a completed sign-out.
func (m *Metrics) IncrementSignOut() {
	if m != nil {
		m.SignOuts.Inc()
	}
}
