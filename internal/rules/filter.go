// internal/rules/filter.go
package rules

import (
	"github.com/solatis/nutriprotocol/internal/types"
)

/*
 * Rule filtering for one user.
 *
 * Applies the expression evaluator to every rule and tallies the outcome.
 * Counters always reconcile: total == applicable + skipped + invalidWhenJson.
 * The invalid count is the rule-table health signal: it is reported
 * separately from skipped so callers can alert on authoring defects.
 *
 * Applicable rules keep input order. Explanations are recorded only for rules
 * with a whenJson that produced matched conditions.
 */

// FilterMeta holds the per-call counters.
type FilterMeta struct {
	Total           int `json:"total"`
	Applicable      int `json:"applicable"`
	Skipped         int `json:"skipped"`
	InvalidWhenJSON int `json:"invalidWhenJson"`
}

// RuleMeta is the explanation recorded for an applicable rule.
type RuleMeta struct {
	Matched []types.MatchedCondition `json:"matched"`
}

// RuleDiagnostic describes a rule that could not be evaluated safely.
type RuleDiagnostic struct {
	RuleID  types.RuleID
	RuleKey string
	Err     error // schema error; nil when the expression was semantically invalid
}

// FilterResult is the outcome of filtering a rule table for one user.
type FilterResult struct {
	ApplicableRules []types.SupplementRule    `json:"applicableRules"`
	Meta            FilterMeta                `json:"meta"`
	RuleMetaByID    map[types.RuleID]RuleMeta `json:"ruleMetaById"`
	Invalid         []RuleDiagnostic          `json:"-"`
}

// Filter compiles and filters rules for one user.
func Filter(rules []types.SupplementRule, ctx types.UserRuleContext) FilterResult {
	return FilterCompiled(CompileAll(rules), ctx)
}

// FilterCompiled filters pre-compiled rules for one user.
func FilterCompiled(rules []CompiledRule, ctx types.UserRuleContext) FilterResult {
	result := FilterResult{
		ApplicableRules: make([]types.SupplementRule, 0, len(rules)),
		RuleMetaByID:    make(map[types.RuleID]RuleMeta),
	}
	result.Meta.Total = len(rules)

	for i := range rules {
		cr := &rules[i]

		if cr.Err != nil {
			result.Meta.InvalidWhenJSON++
			result.Invalid = append(result.Invalid, RuleDiagnostic{RuleID: cr.Rule.ID, RuleKey: cr.Rule.RuleKey, Err: cr.Err})
			continue
		}

		if cr.Unconditional() {
			result.ApplicableRules = append(result.ApplicableRules, cr.Rule)
			result.Meta.Applicable++
			continue
		}

		eval := EvaluateExpression(cr.Expression, ctx)
		switch {
		case eval.Invalid:
			result.Meta.InvalidWhenJSON++
			result.Invalid = append(result.Invalid, RuleDiagnostic{RuleID: cr.Rule.ID, RuleKey: cr.Rule.RuleKey})
		case eval.Applicable:
			result.ApplicableRules = append(result.ApplicableRules, cr.Rule)
			result.Meta.Applicable++
			if len(eval.Matched) > 0 {
				result.RuleMetaByID[cr.Rule.ID] = RuleMeta{Matched: eval.Matched}
			}
		}
	}

	result.Meta.Skipped = result.Meta.Total - result.Meta.Applicable - result.Meta.InvalidWhenJSON
	return result
}
