// internal/coverage/estimator.go
package coverage

import (
	"time"

	"go.uber.org/zap"

	"github.com/solatis/nutriprotocol/internal/types"
)

// Estimator wraps Estimate with an injectable clock, logging and metrics.
// Safe for concurrent use.
type Estimator struct {
	now      func() time.Time
	location *time.Location
	logger   *zap.Logger
	metrics  *Metrics
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithClock sets the time source for computedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Estimator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the zone computedAt is rendered in.
func WithLocation(loc *time.Location) Option {
	return func(e *Estimator) {
		if loc != nil {
			e.location = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Estimator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(e *Estimator) {
		e.metrics = m
	}
}

// NewEstimator creates an Estimator using the wall clock in UTC by default.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		now:      time.Now,
		location: time.UTC,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DeficitSummary is the loggable digest of a snapshot's deficits.
type DeficitSummary struct {
	Codes       []string
	Suggestions int
}

func summarize(snapshot *types.TherapeuticCoverageSnapshot) *DeficitSummary {
	summary := &DeficitSummary{}
	if snapshot.Deficits == nil {
		return summary
	}
	for _, a := range snapshot.Deficits.Alerts {
		summary.Codes = append(summary.Codes, a.Code)
	}
	summary.Suggestions = len(snapshot.Deficits.Suggestions)
	return summary
}

// Estimate builds the coverage snapshot for a plan.
// Returns nil when the request carries no therapeutic targets.
func (e *Estimator) Estimate(plan types.MealPlanResponse, req types.EstimateRequest) *types.TherapeuticCoverageSnapshot {
	if req.TherapeuticTargets == nil {
		e.logger.Debug("coverage estimation skipped: no therapeutic targets")
		e.metrics.observeSkipped()
		return nil
	}

	snapshot := Estimate(plan, req, e.now().In(e.location))
	summary := summarize(snapshot)

	e.logger.Debug("coverage estimated",
		zap.String("protocol_key", req.TherapeuticTargets.ProtocolKey),
		zap.Int("days", len(snapshot.DailyByDate)),
		zap.Strings("deficit_codes", summary.Codes),
		zap.Int("suggestions", summary.Suggestions),
	)
	e.metrics.observe(summary)

	return snapshot
}
