// internal/rules/compile.go
package rules

import (
	"github.com/solatis/nutriprotocol/internal/types"
)

/*
 * Rule compilation.
 *
 * Compiles types.SupplementRule to CompiledRule by running the DSL schema
 * validator over whenJson once. A rule table is loaded once per protocol
 * and then filtered for many users without further JSON decoding.
 *
 * A null whenJson compiles to a nil Expression (unconditional rule).
 * A rule that fails validation stays in the compiled table with Err set;
 * every filter run counts it as invalidWhenJson.
 */

// CompiledRule is a rule with its expression validated and decoded.
type CompiledRule struct {
	Rule       types.SupplementRule
	Expression *types.Expression // nil when unconditional or invalid
	Err        error             // schema error; non-nil means invalid
}

// Unconditional reports whether the rule applies without an expression.
func (c *CompiledRule) Unconditional() bool {
	return c.Err == nil && c.Expression == nil
}

// Compile validates and decodes a rule's whenJson.
func Compile(rule *types.SupplementRule) (*CompiledRule, error) {
	compiled := &CompiledRule{Rule: *rule}

	if rule.WhenJSON.IsNull() {
		return compiled, nil
	}

	expr, err := ParseExpressionJSON(rule.WhenJSON)
	if err != nil {
		return nil, err
	}
	compiled.Expression = expr
	return compiled, nil
}

// CompileAll compiles every rule, preserving input order. Rules that fail
// validation are kept with Err set.
func CompileAll(rules []types.SupplementRule) []CompiledRule {
	compiled := make([]CompiledRule, 0, len(rules))
	for i := range rules {
		cr, err := Compile(&rules[i])
		if err != nil {
			compiled = append(compiled, CompiledRule{Rule: rules[i], Err: err})
			continue
		}
		compiled = append(compiled, *cr)
	}
	return compiled
}
