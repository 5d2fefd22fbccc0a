// internal/rules/evaluate.go
package rules

import (
	"github.com/solatis/nutriprotocol/internal/types"
)

/*
 * Condition and expression evaluation.
 *
 * Evaluates types.Expression against a UserRuleContext with fail-closed
 * semantics. Every evaluation unit has three outcomes: true, false and
 * invalid. Invalid is never folded into false or true: a malformed numeric
 * comparison must neither hide a rule nor show it.
 *
 * Condition flow:
 *   1. Resolve actual value (field or override)
 *   2. exists: decided on presence alone
 *   3. gte/lte: non-numeric expected value is invalid, even when the actual
 *      value is absent (the rule itself is defective)
 *   4. Absent actual: false (absence satisfies no operator, including in)
 *   5. Compare operator -> true/false/invalid
 *
 * Expression semantics:
 *   - all: in order; first invalid short-circuits as invalid, first false
 *     short-circuits as not applicable; vacuous all is applicable
 *   - any: empty list is not applicable; every alternative is evaluated and
 *     one invalid alternative taints the whole clause
 *   - not: negates a single condition; invalid propagates
 *   - several clauses present: all must hold, evaluated all -> any -> not
 *
 * Matched conditions are explanation records only, capped at
 * types.MaxMatchedConditions per expression.
 */

// ConditionResult is the outcome of evaluating one condition.
type ConditionResult struct {
	Result  bool
	Invalid bool
	Matched *types.MatchedCondition // set only when Result is true
}

// ExpressionResult is the outcome of evaluating an expression.
type ExpressionResult struct {
	Applicable bool
	Invalid    bool
	Matched    []types.MatchedCondition
}

// EvaluateCondition evaluates a single condition against the context.
func EvaluateCondition(cond types.Condition, ctx types.UserRuleContext) ConditionResult {
	outcome, record := evaluateCondition(cond, ctx)
	switch outcome {
	case OutcomeTrue:
		return ConditionResult{Result: true, Matched: &record}
	case OutcomeInvalid:
		return ConditionResult{Invalid: true}
	default:
		return ConditionResult{}
	}
}

// evaluateCondition returns the three-valued outcome and an explanation
// record describing the comparison (built regardless of outcome so `not`
// can explain a negated miss).
func evaluateCondition(cond types.Condition, ctx types.UserRuleContext) (Outcome, types.MatchedCondition) {
	resolved, err := Resolve(cond, ctx)
	if err != nil {
		return OutcomeInvalid, types.MatchedCondition{}
	}

	record := explain(cond, resolved)

	allowed := overrideOperators
	if cond.Kind == types.ConditionKindField {
		allowed = fieldOperators
	}
	if !allowed[cond.Operator] {
		return OutcomeInvalid, record
	}

	if cond.Operator == types.OpExists {
		return outcomeOf(resolved.Found), record
	}

	if !cond.HasValue {
		return OutcomeInvalid, record
	}

	if cond.Operator == types.OpGte || cond.Operator == types.OpLte {
		if cond.IsList || !isNumeric(cond.Value) {
			return OutcomeInvalid, record
		}
	}

	if !resolved.Found {
		return OutcomeFalse, record
	}

	return Compare(cond.Operator, resolved.Value, cond.Expected()), record
}

// explain builds the explanation record for a condition.
func explain(cond types.Condition, resolved ResolveResult) types.MatchedCondition {
	m := types.MatchedCondition{
		Type:     cond.Kind.String(),
		Operator: cond.Operator,
		Expected: cond.Expected(),
		Actual:   resolved.Value,
	}
	if cond.Kind == types.ConditionKindOverride {
		m.Key = cond.Key
	} else {
		m.Field = string(cond.Field)
	}
	return m
}

// EvaluateExpression evaluates an expression against the context.
// A nil or empty expression is always applicable.
func EvaluateExpression(expr *types.Expression, ctx types.UserRuleContext) ExpressionResult {
	if expr.IsEmpty() {
		return ExpressionResult{Applicable: true}
	}

	var matched []types.MatchedCondition

	if expr.HasAll {
		res := evaluateAll(expr.All, ctx)
		if res.Invalid || !res.Applicable {
			return res
		}
		matched = appendCapped(matched, res.Matched...)
	}

	if expr.HasAny {
		res := evaluateAny(expr.Any, ctx)
		if res.Invalid || !res.Applicable {
			return res
		}
		matched = appendCapped(matched, res.Matched...)
	}

	if expr.Not != nil {
		res := evaluateNot(*expr.Not, ctx)
		if res.Invalid || !res.Applicable {
			return res
		}
		matched = appendCapped(matched, res.Matched...)
	}

	return ExpressionResult{Applicable: true, Matched: matched}
}

// evaluateAll applies AND semantics with short-circuit on first invalid or false.
func evaluateAll(conds []types.Condition, ctx types.UserRuleContext) ExpressionResult {
	var matched []types.MatchedCondition
	for _, cond := range conds {
		outcome, record := evaluateCondition(cond, ctx)
		switch outcome {
		case OutcomeInvalid:
			return ExpressionResult{Invalid: true}
		case OutcomeFalse:
			return ExpressionResult{}
		}
		matched = appendCapped(matched, record)
	}
	return ExpressionResult{Applicable: true, Matched: matched}
}

// evaluateAny applies OR semantics. Evaluates every alternative so that an
// invalid alternative taints the result even after a true one.
func evaluateAny(conds []types.Condition, ctx types.UserRuleContext) ExpressionResult {
	if len(conds) == 0 {
		return ExpressionResult{}
	}

	var matched []types.MatchedCondition
	anyTrue := false
	for _, cond := range conds {
		outcome, record := evaluateCondition(cond, ctx)
		switch outcome {
		case OutcomeInvalid:
			return ExpressionResult{Invalid: true}
		case OutcomeTrue:
			anyTrue = true
			matched = appendCapped(matched, record)
		}
	}

	if !anyTrue {
		return ExpressionResult{}
	}
	return ExpressionResult{Applicable: true, Matched: matched}
}

// evaluateNot negates a single condition. Invalid is never negated.
func evaluateNot(cond types.Condition, ctx types.UserRuleContext) ExpressionResult {
	outcome, record := evaluateCondition(cond, ctx)
	switch outcome {
	case OutcomeInvalid:
		return ExpressionResult{Invalid: true}
	case OutcomeTrue:
		return ExpressionResult{}
	}
	record.Negated = true
	return ExpressionResult{Applicable: true, Matched: []types.MatchedCondition{record}}
}

// appendCapped appends records up to types.MaxMatchedConditions.
func appendCapped(dst []types.MatchedCondition, records ...types.MatchedCondition) []types.MatchedCondition {
	for _, r := range records {
		if len(dst) >= types.MaxMatchedConditions {
			break
		}
		dst = append(dst, r)
	}
	return dst
}
