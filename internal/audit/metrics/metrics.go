package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit module.
type Metrics struct {
	// Events accepted into the inbox by action
	Emitted *prometheus.CounterVec

	// Events dropped because the inbox was full
	Dropped prometheus.Counter

	// Publishes that failed downstream
	PublishFailures prometheus.Counter
}

// New creates a new Metrics instance with all audit module metrics registered.
func New() *Metrics {
	return &Metrics{
		Emitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "currency_audit_events_total",
			Help: "Audit events accepted into the inbox by action",
		}, []string{"action"}),

		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "currency_audit_events_dropped_total",
			Help: "Audit events dropped because the inbox was full",
		}),

		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "currency_audit_publish_failures_total",
			Help: "Audit events that failed to publish downstream",
		}),
	}
}

// IncrementEmitted counts one accepted event.
func (m *Metrics) IncrementEmitted(action string) {
	if m != nil {
		m.Emitted.WithLabelValues(action).Inc()
	}
}

// IncrementDropped counts one dropped event.
func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

// IncrementPublishFailure counts one failed publish.
func (m *Metrics) IncrementPublishFailure() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}
