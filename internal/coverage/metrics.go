// internal/coverage/metrics.go
package coverage

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts estimation runs and the deficits they raise.
type Metrics struct {
	estimations prometheus.Counter
	skipped     prometheus.Counter
	alerts      *prometheus.CounterVec
	suggestions prometheus.Counter
}

// NewMetrics creates and registers coverage metrics on reg.
// A nil reg leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		estimations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nutriprotocol",
			Subsystem: "coverage",
			Name:      "estimations_total",
			Help:      "Number of coverage snapshots built.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nutriprotocol",
			Subsystem: "coverage",
			Name:      "estimations_skipped_total",
			Help:      "Number of estimation requests without therapeutic targets.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutriprotocol",
			Subsystem: "coverage",
			Name:      "deficit_alerts_total",
			Help:      "Deduplicated deficit alerts by code.",
		}, []string{"code"}),
		suggestions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nutriprotocol",
			Subsystem: "coverage",
			Name:      "suggestions_total",
			Help:      "Suggestions attached to coverage snapshots.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.estimations, m.skipped, m.alerts, m.suggestions)
	}
	return m
}

func (m *Metrics) observeSkipped() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

func (m *Metrics) observe(report *DeficitSummary) {
	if m == nil {
		return
	}
	m.estimations.Inc()
	for _, code := range report.Codes {
		m.alerts.WithLabelValues(code).Inc()
	}
	m.suggestions.Add(float64(report.Suggestions))
}
