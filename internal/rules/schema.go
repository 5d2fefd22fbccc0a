// internal/rules/schema.go
package rules

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/solatis/nutriprotocol/internal/types"
)

/*
 * DSL schema validation.
 *
 * Structurally validates an untyped whenJson value (as decoded by
 * encoding/json) into types.Expression. Anything that does not match the
 * grammar exactly is rejected:
 *
 *   expression := { all?: [condition], any?: [condition], not?: condition }
 *   condition  := { field: <context field>, op: eq|neq|gte|lte|in, value }
 *              |  { field: "override", key: string, op: ...|exists, value? }
 *   value      := scalar | [scalar]        scalar := string | number | bool
 *
 * Validation is purely structural: it knows field names and operators by
 * enumeration, not their business meaning. Unknown keys at either level are
 * rejected so a typo never silently drops a clause.
 *
 * Errors are *SchemaError values carrying a JSON-path-like location; they
 * unwrap to types.ErrInvalidExpression and the specific cause.
 */

// SchemaError describes why a value is not a valid rule expression.
type SchemaError struct {
	Path   string // location, e.g. "all[1].op"; empty for the root
	Reason string
	Err    error // specific sentinel (ErrUnknownOperator, ...)
}

// Error implements error.
func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %s", types.ErrInvalidExpression, e.Reason)
	}
	return fmt.Sprintf("%v at %s: %s", types.ErrInvalidExpression, e.Path, e.Reason)
}

// Unwrap exposes both the generic and the specific sentinel to errors.Is.
func (e *SchemaError) Unwrap() []error {
	if e.Err == nil {
		return []error{types.ErrInvalidExpression}
	}
	return []error{types.ErrInvalidExpression, e.Err}
}

func schemaErr(path string, err error, format string, args ...any) *SchemaError {
	return &SchemaError{Path: path, Reason: fmt.Sprintf(format, args...), Err: err}
}

var (
	expressionKeys = map[string]bool{"all": true, "any": true, "not": true}
	fieldCondKeys  = map[string]bool{"field": true, "op": true, "value": true}
	overrideKeys   = map[string]bool{"field": true, "key": true, "op": true, "value": true}

	fieldOperators = map[types.Operator]bool{
		types.OpEq: true, types.OpNeq: true, types.OpGte: true, types.OpLte: true, types.OpIn: true,
	}
	overrideOperators = map[types.Operator]bool{
		types.OpEq: true, types.OpNeq: true, types.OpGte: true, types.OpLte: true, types.OpIn: true,
		types.OpExists: true,
	}
)

// ParseExpressionJSON decodes and validates a whenJson document.
func ParseExpressionJSON(data []byte) (*types.Expression, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, schemaErr("", nil, "malformed JSON: %v", err)
	}
	return ParseExpression(raw)
}

// ParseExpression validates a decoded value into an Expression.
// The root must be an object; null is not an expression (callers treat a
// null whenJson as "no expression" before calling).
func ParseExpression(raw any) (*types.Expression, error) {
	root, ok := raw.(map[string]any)
	if !ok {
		return nil, schemaErr("", nil, "root must be an object, got %s", describe(raw))
	}

	for _, k := range sortedKeys(root) {
		if !expressionKeys[k] {
			return nil, schemaErr(k, nil, "unknown expression key %q", k)
		}
	}

	expr := &types.Expression{}

	if v, ok := root["all"]; ok {
		conds, err := parseConditionList(v, "all")
		if err != nil {
			return nil, err
		}
		expr.All = conds
		expr.HasAll = true
	}

	if v, ok := root["any"]; ok {
		conds, err := parseConditionList(v, "any")
		if err != nil {
			return nil, err
		}
		expr.Any = conds
		expr.HasAny = true
	}

	if v, ok := root["not"]; ok {
		cond, err := parseCondition(v, "not")
		if err != nil {
			return nil, err
		}
		expr.Not = &cond
	}

	return expr, nil
}

// parseConditionList validates an all/any clause: an array of conditions.
func parseConditionList(raw any, path string) ([]types.Condition, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, schemaErr(path, nil, "must be an array, got %s", describe(raw))
	}
	conds := make([]types.Condition, 0, len(arr))
	for i, elem := range arr {
		cond, err := parseCondition(elem, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

// parseCondition validates one condition against the two condition shapes.
func parseCondition(raw any, path string) (types.Condition, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return types.Condition{}, schemaErr(path, types.ErrInvalidCondition, "condition must be an object, got %s", describe(raw))
	}

	fieldRaw, ok := obj["field"].(string)
	if !ok {
		return types.Condition{}, schemaErr(path+".field", types.ErrInvalidCondition, "field must be a string")
	}
	opRaw, ok := obj["op"].(string)
	if !ok {
		return types.Condition{}, schemaErr(path+".op", types.ErrUnknownOperator, "op must be a string")
	}

	field := types.ContextField(fieldRaw)
	op := types.Operator(opRaw)

	if field == types.FieldOverride {
		return parseOverrideCondition(obj, op, path)
	}
	return parseFieldCondition(obj, field, op, path)
}

func parseFieldCondition(obj map[string]any, field types.ContextField, op types.Operator, path string) (types.Condition, error) {
	if !IsContextField(field) {
		return types.Condition{}, schemaErr(path+".field", types.ErrUnknownField, "unknown field %q", field)
	}
	if err := checkKeys(obj, fieldCondKeys, path); err != nil {
		return types.Condition{}, err
	}
	if !fieldOperators[op] {
		return types.Condition{}, schemaErr(path+".op", types.ErrUnknownOperator, "unknown operator %q for field condition", op)
	}

	cond := types.Condition{Kind: types.ConditionKindField, Field: field, Operator: op}
	if err := parseValue(obj, &cond, path); err != nil {
		return types.Condition{}, err
	}
	if !cond.HasValue {
		return types.Condition{}, schemaErr(path+".value", types.ErrMissingValue, "value required for operator %q", op)
	}
	return cond, nil
}

func parseOverrideCondition(obj map[string]any, op types.Operator, path string) (types.Condition, error) {
	if err := checkKeys(obj, overrideKeys, path); err != nil {
		return types.Condition{}, err
	}
	key, ok := obj["key"].(string)
	if !ok || key == "" {
		return types.Condition{}, schemaErr(path+".key", types.ErrInvalidCondition, "override key must be a non-empty string")
	}
	if !overrideOperators[op] {
		return types.Condition{}, schemaErr(path+".op", types.ErrUnknownOperator, "unknown operator %q for override condition", op)
	}

	cond := types.Condition{Kind: types.ConditionKindOverride, Field: types.FieldOverride, Key: key, Operator: op}
	if err := parseValue(obj, &cond, path); err != nil {
		return types.Condition{}, err
	}
	if !cond.HasValue && op != types.OpExists {
		return types.Condition{}, schemaErr(path+".value", types.ErrMissingValue, "value required for operator %q", op)
	}
	return cond, nil
}

// parseValue fills Value/Values from obj["value"]. A JSON null value counts
// as absent.
func parseValue(obj map[string]any, cond *types.Condition, path string) error {
	raw, present := obj["value"]
	if !present || raw == nil {
		return nil
	}

	if arr, ok := raw.([]any); ok {
		values := make([]any, 0, len(arr))
		for i, elem := range arr {
			scalar, ok := normalizeScalar(elem)
			if !ok {
				return schemaErr(fmt.Sprintf("%s.value[%d]", path, i), types.ErrInvalidValue, "list elements must be scalars, got %s", describe(elem))
			}
			values = append(values, scalar)
		}
		cond.Values = values
		cond.IsList = true
		cond.HasValue = true
		return nil
	}

	scalar, ok := normalizeScalar(raw)
	if !ok {
		return schemaErr(path+".value", types.ErrInvalidValue, "value must be a scalar or list of scalars, got %s", describe(raw))
	}
	cond.Value = scalar
	cond.HasValue = true
	return nil
}

// checkKeys rejects keys outside the allowed set. Keys are checked in sorted
// order so the reported key is deterministic.
func checkKeys(obj map[string]any, allowed map[string]bool, path string) error {
	for _, k := range sortedKeys(obj) {
		if !allowed[k] {
			return schemaErr(path+"."+k, types.ErrInvalidCondition, "unknown condition key %q", k)
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// describe names the JSON kind of a decoded value for error messages.
func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	if isNumeric(v) {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
