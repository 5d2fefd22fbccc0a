// internal/rules/resolve.go
package rules

import (
	"github.com/solatis/nutriprotocol/internal/types"
)

/*
 * Operand resolution against a UserRuleContext.
 *
 * Field conditions read one typed profile field; override conditions read
 * ctx.Overrides[key]. Resolution never fails for a well-formed condition: a
 * missing profile value or override key resolves to Found=false, which the
 * evaluator turns into "not applicable".
 *
 * Override values are normalized (integer kinds to float64) so explanations
 * report the same representation regardless of how overrides were decoded.
 * A nil override value counts as absent: `exists` requires a non-null value.
 */

// ResolveResult contains the resolved actual value.
type ResolveResult struct {
	Value     any       // resolved value (nil if not found)
	Found     bool      // true if the context holds a non-nil value
	FieldType FieldType // domain of the value
}

// Resolve looks up the actual value a condition compares against.
// Returns ErrUnknownField for field conditions naming no context field.
func Resolve(cond types.Condition, ctx types.UserRuleContext) (ResolveResult, error) {
	if cond.Kind == types.ConditionKindOverride {
		return resolveOverride(cond.Key, ctx.Overrides), nil
	}

	ft, ok := FieldTypeOf(cond.Field)
	if !ok {
		return ResolveResult{}, types.ErrUnknownField
	}

	var value any
	switch cond.Field {
	case types.FieldSex:
		value = stringValue(ctx.Sex)
	case types.FieldDietKey:
		value = stringValue(ctx.DietKey)
	case types.FieldProtocolKey:
		value = stringValue(ctx.ProtocolKey)
	case types.FieldAgeYears:
		value = numberValue(ctx.AgeYears)
	case types.FieldHeightCm:
		value = numberValue(ctx.HeightCm)
	case types.FieldWeightKg:
		value = numberValue(ctx.WeightKg)
	case types.FieldProtocolVersion:
		value = numberValue(ctx.ProtocolVersion)
	}

	return ResolveResult{Value: value, Found: value != nil, FieldType: ft}, nil
}

// resolveOverride reads an override key. Absent and null are both not found.
func resolveOverride(key string, overrides map[string]any) ResolveResult {
	raw, ok := overrides[key]
	if !ok || raw == nil {
		return ResolveResult{FieldType: FieldTypeAny}
	}
	if normalized, isScalar := normalizeScalar(raw); isScalar {
		raw = normalized
	}
	return ResolveResult{Value: raw, Found: true, FieldType: FieldTypeAny}
}

// stringValue returns the pointed-to string, or nil when unset.
func stringValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// numberValue returns the pointed-to number, or nil when unset.
func numberValue(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
