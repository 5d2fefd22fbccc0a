// internal/rules/engine.go
package rules

import (
	"go.uber.org/zap"

	"github.com/solatis/nutriprotocol/internal/types"
)

// Engine holds a compiled rule table and filters it per user.
// The table is immutable after construction; Filter is safe for concurrent use.
type Engine struct {
	rules   []CompiledRule
	logger  *zap.Logger
	metrics *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used to report invalid rules.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine compiles the rule table once.
func NewEngine(rules []types.SupplementRule, opts ...Option) *Engine {
	e := &Engine{
		rules:  CompileAll(rules),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Len returns the number of rules in the table.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Filter returns the rules applicable to ctx.
func (e *Engine) Filter(ctx types.UserRuleContext) FilterResult {
	result := FilterCompiled(e.rules, ctx)

	for _, d := range result.Invalid {
		fields := []zap.Field{
			zap.String("rule_id", string(d.RuleID)),
			zap.String("rule_key", d.RuleKey),
		}
		if d.Err != nil {
			fields = append(fields, zap.Error(d.Err))
		} else {
			fields = append(fields, zap.String("reason", "condition could not be evaluated safely"))
		}
		e.logger.Warn("invalid rule expression excluded", fields...)
	}

	e.logger.Debug("rules filtered",
		zap.Int("total", result.Meta.Total),
		zap.Int("applicable", result.Meta.Applicable),
		zap.Int("skipped", result.Meta.Skipped),
		zap.Int("invalid_when_json", result.Meta.InvalidWhenJSON),
	)
	e.metrics.observe(result.Meta)

	return result
}
