// internal/rules/coercion.go
package rules

import (
	"encoding/json"

	"github.com/solatis/nutriprotocol/internal/types"
)

/*
 * Operand typing for condition evaluation.
 *
 * Each context field has a fixed domain: text for sex/dietKey/protocolKey,
 * numeric for ageYears/heightCm/weightKg/protocolVersion. Override values are
 * free-form scalars (FieldTypeAny) and are typed at comparison time.
 *
 * Key distinction: an absent value and a type mismatch are different
 * outcomes. Absent resolves to "not applicable"; a numeric comparison over a
 * non-numeric operand is invalid and must be reported as such.
 *
 * Numeric mode is strict: numeric strings ("60") and booleans are NOT
 * numbers. Rule authors write numbers as JSON numbers; a quoted number in a
 * gte/lte condition is a rule-authoring defect and surfaces as invalid.
 */

// FieldType is the value domain of a resolved operand.
type FieldType int

const (
	FieldTypeAny FieldType = iota
	FieldTypeNumeric
	FieldTypeText
)

// fieldTypes maps each context field to its domain.
var fieldTypes = map[types.ContextField]FieldType{
	types.FieldSex:             FieldTypeText,
	types.FieldAgeYears:        FieldTypeNumeric,
	types.FieldHeightCm:        FieldTypeNumeric,
	types.FieldWeightKg:        FieldTypeNumeric,
	types.FieldDietKey:         FieldTypeText,
	types.FieldProtocolKey:     FieldTypeText,
	types.FieldProtocolVersion: FieldTypeNumeric,
}

// FieldTypeOf returns the domain of a context field.
// Returns false for unknown fields, including the override discriminant.
func FieldTypeOf(field types.ContextField) (FieldType, bool) {
	ft, ok := fieldTypes[field]
	return ft, ok
}

// IsContextField reports whether field names a field-condition target.
func IsContextField(field types.ContextField) bool {
	_, ok := fieldTypes[field]
	return ok
}

// toFloat64 converts value to float64 if it is a Go numeric type.
// Handles float64 from JSON decoding, integer kinds from YAML decoding and
// programmatic callers, and json.Number from UseNumber decoders.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// isNumeric reports whether v is a numeric operand.
func isNumeric(v any) bool {
	_, ok := toFloat64(v)
	return ok
}

// normalizeScalar canonicalizes a scalar: numbers become float64, strings and
// booleans pass through. Returns false for anything that is not a scalar.
func normalizeScalar(v any) (any, bool) {
	switch s := v.(type) {
	case string, bool:
		return s, true
	}
	if f, ok := toFloat64(v); ok {
		return f, true
	}
	return nil, false
}
