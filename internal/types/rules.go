// internal/types/rules.go
package types

/*
 * Domain types for supplement rule evaluation.
 *
 * Provides Condition, Expression, UserRuleContext, SupplementRule and
 * MatchedCondition used by internal/rules for validation and evaluation.
 * These types are storage agnostic - row-to-type conversion happens in
 * internal/core/db and internal/fixtures.
 *
 * Key types:
 *   - Condition: tagged struct; Kind discriminates field vs override shape
 *   - Expression: all/any/not over Conditions (zero value = always applicable)
 *   - UserRuleContext: per-user evaluation environment, immutable per call
 *   - SupplementRule: one row of the externally supplied rule table
 *   - MatchedCondition: explanation record for an applicable rule
 *
 * Dependencies: None (encoding/json only)
 */

// ContextField names a value of UserRuleContext a field condition can read.
type ContextField string

const (
	FieldSex             ContextField = "sex"
	FieldAgeYears        ContextField = "ageYears"
	FieldHeightCm        ContextField = "heightCm"
	FieldWeightKg        ContextField = "weightKg"
	FieldDietKey         ContextField = "dietKey"
	FieldProtocolKey     ContextField = "protocolKey"
	FieldProtocolVersion ContextField = "protocolVersion"

	// FieldOverride is the discriminant of override conditions, not a context field.
	FieldOverride ContextField = "override"
)

// ContextFields lists every field a field condition may name, in declaration order.
var ContextFields = []ContextField{
	FieldSex,
	FieldAgeYears,
	FieldHeightCm,
	FieldWeightKg,
	FieldDietKey,
	FieldProtocolKey,
	FieldProtocolVersion,
}

// Operator is a condition comparison operator.
type Operator string

const (
	OpEq     Operator = "eq"
	OpNeq    Operator = "neq"
	OpGte    Operator = "gte"
	OpLte    Operator = "lte"
	OpIn     Operator = "in"
	OpExists Operator = "exists"
)

// ConditionKind discriminates the two condition shapes.
type ConditionKind int

const (
	ConditionKindField ConditionKind = iota
	ConditionKindOverride
)

// String returns the wire name used in explanations.
func (k ConditionKind) String() string {
	if k == ConditionKindOverride {
		return "override"
	}
	return "field"
}

// Condition represents a single comparison in a rule expression.
// Field is set for ConditionKindField, Key for ConditionKindOverride.
// Value holds a scalar (string, float64, bool); Values holds a list value.
type Condition struct {
	Kind     ConditionKind
	Field    ContextField // context field (field kind only)
	Key      string       // override key (override kind only)
	Operator Operator
	Value    any   // scalar comparison value (valid when HasValue && !IsList)
	Values   []any // list comparison value (valid when IsList)
	IsList   bool  // value was given as an array
	HasValue bool  // false only for exists
}

// Expected returns the comparison value as authored: the list for list
// values, the scalar otherwise, nil when absent.
func (c Condition) Expected() any {
	if !c.HasValue {
		return nil
	}
	if c.IsList {
		return c.Values
	}
	return c.Value
}

// Expression is a boolean combination of conditions.
// Has* flags distinguish an absent clause from an empty one: `any: []` is
// present and never applicable, while an absent any is ignored.
type Expression struct {
	All    []Condition
	Any    []Condition
	Not    *Condition
	HasAll bool
	HasAny bool
}

// IsEmpty reports whether no clause is present (always applicable).
func (e *Expression) IsEmpty() bool {
	return e == nil || (!e.HasAll && !e.HasAny && e.Not == nil)
}

// UserRuleContext is the evaluation environment for one user.
// Nil pointers mean the profile value is unknown.
type UserRuleContext struct {
	Sex             *string        `json:"sex,omitempty" yaml:"sex"`
	AgeYears        *float64       `json:"ageYears,omitempty" yaml:"ageYears"`
	HeightCm        *float64       `json:"heightCm,omitempty" yaml:"heightCm"`
	WeightKg        *float64       `json:"weightKg,omitempty" yaml:"weightKg"`
	DietKey         *string        `json:"dietKey,omitempty" yaml:"dietKey"`
	ProtocolKey     *string        `json:"protocolKey,omitempty" yaml:"protocolKey"`
	ProtocolVersion *float64       `json:"protocolVersion,omitempty" yaml:"protocolVersion"`
	Overrides       map[string]any `json:"overrides,omitempty" yaml:"overrides"`
}

// SupplementRule is one row of the rule table, already filtered to active rules.
type SupplementRule struct {
	ID            RuleID   `json:"id"`
	ProtocolID    string   `json:"protocolId"`
	SupplementKey string   `json:"supplementKey"`
	RuleKey       string   `json:"ruleKey"`
	Kind          string   `json:"kind"`
	Severity      string   `json:"severity"`
	WhenJSON      WhenJSON `json:"whenJson"`
	MessageNl     string   `json:"messageNl"`
	IsActive      bool     `json:"isActive"`
}

// MatchedCondition explains which condition contributed to a rule being applicable.
type MatchedCondition struct {
	Type     string   `json:"type"` // "field" or "override"
	Operator Operator `json:"op"`
	Field    string   `json:"field,omitempty"`
	Key      string   `json:"key,omitempty"`
	Expected any      `json:"expected,omitempty"`
	Actual   any      `json:"actual"`
	Negated  bool     `json:"negated,omitempty"`
}

// HealthProfile is the subset of a user's health profile the engine reads.
type HealthProfile struct {
	UserID     string   `json:"userId" yaml:"userId"`
	ProtocolID string   `json:"protocolId,omitempty" yaml:"protocolId"`
	Sex        string   `json:"sex,omitempty" yaml:"sex"`
	BirthDate  string   `json:"birthDate,omitempty" yaml:"birthDate"` // YYYY-MM-DD
	HeightCm   *float64 `json:"heightCm,omitempty" yaml:"heightCm"`
	WeightKg   *float64 `json:"weightKg,omitempty" yaml:"weightKg"`
	DietKey    string   `json:"dietKey,omitempty" yaml:"dietKey"`
}

// Protocol identifies the therapeutic protocol a user follows.
type Protocol struct {
	ID      string  `json:"id" yaml:"id"`
	Key     string  `json:"protocolKey" yaml:"protocolKey"`
	Version float64 `json:"protocolVersion" yaml:"protocolVersion"`
}
