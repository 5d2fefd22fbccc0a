// internal/rules/coercion_test.go
package rules

import (
	"encoding/json"
	"testing"

	"github.com/solatis/nutriprotocol/internal/types"
)

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   float64
		wantOK bool
	}{
		{"float64", float64(1.5), 1.5, true},
		{"float32", float32(2.5), 2.5, true},
		{"int", 3, 3, true},
		{"int8", int8(-4), -4, true},
		{"int64", int64(1 << 40), float64(1 << 40), true},
		{"uint16", uint16(7), 7, true},
		{"uint64", uint64(9), 9, true},
		{"json.Number", json.Number("12.25"), 12.25, true},
		{"bad json.Number", json.Number("abc"), 0, false},
		{"numeric string", "60", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
		{"slice", []any{1}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toFloat64(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("toFloat64(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("toFloat64(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeScalar(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   any
		wantOK bool
	}{
		{"string", "wahls", "wahls", true},
		{"bool", false, false, true},
		{"int becomes float64", 5, float64(5), true},
		{"uint8 becomes float64", uint8(200), float64(200), true},
		{"nil", nil, nil, false},
		{"map", map[string]any{}, nil, false},
		{"list", []any{"a"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalizeScalar(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("normalizeScalar(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("normalizeScalar(%v) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFieldTypeOf(t *testing.T) {
	numeric := []types.ContextField{
		types.FieldAgeYears, types.FieldHeightCm, types.FieldWeightKg, types.FieldProtocolVersion,
	}
	text := []types.ContextField{types.FieldSex, types.FieldDietKey, types.FieldProtocolKey}

	for _, f := range numeric {
		if ft, ok := FieldTypeOf(f); !ok || ft != FieldTypeNumeric {
			t.Errorf("FieldTypeOf(%s) = %v, %v, want numeric", f, ft, ok)
		}
	}
	for _, f := range text {
		if ft, ok := FieldTypeOf(f); !ok || ft != FieldTypeText {
			t.Errorf("FieldTypeOf(%s) = %v, %v, want text", f, ft, ok)
		}
	}

	if IsContextField(types.FieldOverride) {
		t.Error("IsContextField(override) = true, want false")
	}
	if IsContextField("bloodType") {
		t.Error("IsContextField(bloodType) = true, want false")
	}
	if len(types.ContextFields) != len(fieldTypes) {
		t.Errorf("ContextFields has %d entries, fieldTypes has %d", len(types.ContextFields), len(fieldTypes))
	}
	for _, f := range types.ContextFields {
		if !IsContextField(f) {
			t.Errorf("ContextFields entry %s has no field type", f)
		}
	}
}

func TestResolve(t *testing.T) {
	ctx := types.UserRuleContext{
		Sex:       strPtr("male"),
		WeightKg:  numPtr(80),
		Overrides: map[string]any{"dose": 3, "flag": true, "gone": nil},
	}

	tests := []struct {
		name      string
		cond      types.Condition
		wantValue any
		wantFound bool
		wantType  FieldType
		wantErr   error
	}{
		{"text field", fieldCond(types.FieldSex, types.OpEq, "x"), "male", true, FieldTypeText, nil},
		{"numeric field", fieldCond(types.FieldWeightKg, types.OpEq, 1), float64(80), true, FieldTypeNumeric, nil},
		{"unset field", fieldCond(types.FieldHeightCm, types.OpEq, 1), nil, false, FieldTypeNumeric, nil},
		{"override int normalized", overrideCond("dose", types.OpExists, nil), float64(3), true, FieldTypeAny, nil},
		{"override bool", overrideCond("flag", types.OpExists, nil), true, true, FieldTypeAny, nil},
		{"override null", overrideCond("gone", types.OpExists, nil), nil, false, FieldTypeAny, nil},
		{"override absent", overrideCond("none", types.OpExists, nil), nil, false, FieldTypeAny, nil},
		{"unknown field", fieldCond("shoeSize", types.OpEq, 1), nil, false, FieldTypeAny, types.ErrUnknownField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.cond, ctx)
			if err != tt.wantErr {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			if got.Found != tt.wantFound || got.Value != tt.wantValue || got.FieldType != tt.wantType {
				t.Errorf("Resolve() = %+v, want {%v %v %v}", got, tt.wantValue, tt.wantFound, tt.wantType)
			}
		})
	}
}
