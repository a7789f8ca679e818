package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the history module.
type Metrics struct {
	// Write outcomes by disposition
	WriteOutcome *prometheus.CounterVec

	// Change notifications consumed from the record feed
	FeedNotifications prometheus.Counter

	// Snapshot refresh outcomes
	RefreshOutcome *prometheus.CounterVec

	// Records in the current view
	ViewSize prometheus.Gauge
}

// New creates a new Metrics instance with all history module metrics registered.
func New() *Metrics {
	return &Metrics{
		WriteOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "currency_history_writes_total",
			Help: "Total record write attempts by disposition",
		}, []string{"outcome"}), // outcome: "persisted", "skipped_no_session", "skipped_not_recognized", "failed"

		FeedNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Name: "currency_history_feed_notifications_total",
			Help: "Change notifications consumed from the record feed",
		}),

		RefreshOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "currency_history_refreshes_total",
			Help: "Total view refreshes by outcome",
		}, []string{"outcome"}), // outcome: "ok", "error"

		ViewSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "currency_history_view_records",
			Help: "Records held by the current history view",
		}),
	}
}

// IncrementWrite records a write disposition.
func (m *Metrics) IncrementWrite(outcome string) {
	if m != nil {
		m.WriteOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementFeedNotification counts one consumed change notification.
func (m *Metrics) IncrementFeedNotification() {
	if m != nil {
		m.FeedNotifications.Inc()
	}
}

// IncrementRefresh records a view refresh outcome.
func (m *Metrics) IncrementRefresh(outcome string) {
	if m != nil {
		m.RefreshOutcome.WithLabelValues(outcome).Inc()
	}
}

// SetViewSize records the size of the current view.
func (m *Metrics) SetViewSize(n int) {
	if m != nil {
		m.ViewSize.Set(float64(n))
	}
}
