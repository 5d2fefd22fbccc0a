// internal/rules/operators.go
package rules

import (
	"github.com/solatis/nutriprotocol/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Implements the six condition operators as a three-valued comparison:
 * true, false, or invalid. Absent actual values are handled by the
 * evaluator before reaching Compare; Compare only sees present operands
 * (except for exists, which is defined over presence).
 *
 * Operators:
 *   - exists: actual present and non-nil
 *   - eq/neq: equality with numeric tolerance (5 == 5.0)
 *   - gte/lte: numeric only; any non-numeric operand is invalid
 *   - in: membership with equality semantics; scalar expected = singleton
 *
 * eq/neq against a list value is invalid: comparing a scalar to a list has
 * no defined meaning.
 */

// Outcome is the three-valued result of a comparison.
type Outcome int

const (
	OutcomeFalse Outcome = iota
	OutcomeTrue
	OutcomeInvalid
)

// String returns a lowercase name for logs and test output.
func (o Outcome) String() string {
	switch o {
	case OutcomeTrue:
		return "true"
	case OutcomeInvalid:
		return "invalid"
	default:
		return "false"
	}
}

func outcomeOf(b bool) Outcome {
	if b {
		return OutcomeTrue
	}
	return OutcomeFalse
}

// Compare applies the operator to the actual value and the expected value.
// expected is a scalar or a []any list as produced by the schema validator.
func Compare(op types.Operator, actual, expected any) Outcome {
	switch op {
	case types.OpExists:
		return outcomeOf(actual != nil)
	case types.OpEq:
		if _, isList := expected.([]any); isList {
			return OutcomeInvalid
		}
		return outcomeOf(compareEqual(actual, expected))
	case types.OpNeq:
		if _, isList := expected.([]any); isList {
			return OutcomeInvalid
		}
		return outcomeOf(!compareEqual(actual, expected))
	case types.OpGte:
		cmp, ok := compareNumeric(actual, expected)
		if !ok {
			return OutcomeInvalid
		}
		return outcomeOf(cmp >= 0)
	case types.OpLte:
		cmp, ok := compareNumeric(actual, expected)
		if !ok {
			return OutcomeInvalid
		}
		return outcomeOf(cmp <= 0)
	case types.OpIn:
		return outcomeOf(compareIn(actual, expected))
	default:
		return OutcomeInvalid
	}
}

// compareEqual performs equality comparison with numeric type coercion.
// Non-numeric operands compare with ==; mismatched kinds are unequal.
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	if isNumeric(a) || isNumeric(b) {
		return false
	}
	switch a.(type) {
	case string, bool:
	default:
		return false
	}
	return a == b
}

// compareNumeric performs three-way numeric comparison (-1/0/1).
// Returns ok=false when either operand is not numeric.
func compareNumeric(a, b any) (int, bool) {
	na, nb, ok := asNumbers(a, b)
	if !ok {
		return 0, false
	}
	switch {
	case na < nb:
		return -1, true
	case na > nb:
		return 1, true
	default:
		return 0, true
	}
}

// asNumbers attempts to convert both values to float64.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// compareIn checks if value exists in set using equality semantics.
// A scalar set is treated as a singleton list.
func compareIn(value, set any) bool {
	arr, ok := set.([]any)
	if !ok {
		return compareEqual(value, set)
	}
	for _, elem := range arr {
		if compareEqual(value, elem) {
			return true
		}
	}
	return false
}
