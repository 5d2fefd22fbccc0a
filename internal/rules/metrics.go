// internal/rules/metrics.go
package rules

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts rule filtering outcomes for rule-table health monitoring.
// A rising invalid count means a rule author shipped a malformed whenJson.
type Metrics struct {
	filterRuns prometheus.Counter
	outcomes   *prometheus.CounterVec
}

// NewMetrics creates and registers rule metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		filterRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nutriprotocol",
			Subsystem: "rules",
			Name:      "filter_runs_total",
			Help:      "Number of rule-table filter runs.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nutriprotocol",
			Subsystem: "rules",
			Name:      "rule_outcomes_total",
			Help:      "Rule evaluation outcomes by kind (applicable, skipped, invalid).",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.filterRuns, m.outcomes)
	}
	return m
}

// observe records the counters of one filter run.
func (m *Metrics) observe(meta FilterMeta) {
	if m == nil {
		return
	}
	m.filterRuns.Inc()
	m.outcomes.WithLabelValues("applicable").Add(float64(meta.Applicable))
	m.outcomes.WithLabelValues("skipped").Add(float64(meta.Skipped))
	m.outcomes.WithLabelValues("invalid").Add(float64(meta.InvalidWhenJSON))
}
