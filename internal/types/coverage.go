// internal/types/coverage.go
package types

/*
 * Domain types for therapeutic coverage estimation.
 *
 * Inputs (TherapeuticTargetsSnapshot, MealPlanResponse) are materialized by
 * upstream services; outputs (TherapeuticCoverageSnapshot) are plain data for
 * the diet-review presentation layer. Field names follow the surrounding
 * application's camelCase wire format.
 */

// TargetKind distinguishes absolute targets from percentage-of targets.
type TargetKind string

const (
	TargetAbsolute TargetKind = "absolute"
	TargetPercent  TargetKind = "percent"
)

// Target is a single daily target.
// For TargetPercent, Value is a percentage of PercentOf (e.g. "energy").
type Target struct {
	Kind      TargetKind `json:"kind" yaml:"kind" validate:"required,oneof=absolute percent"`
	Value     float64    `json:"value" yaml:"value" validate:"gte=0"`
	Unit      string     `json:"unit" yaml:"unit"`
	PercentOf string     `json:"percentOf,omitempty" yaml:"percentOf"`
}

// IsAbsolute reports whether the target is an absolute amount.
func (t Target) IsAbsolute() bool {
	return t.Kind == TargetAbsolute || t.Kind == ""
}

// Food group keys. Only vegetables are derived from the plan today.
const (
	FoodGroupVegetables = "vegetablesG"
	FoodGroupFruit      = "fruitG"
)

// DailyTargets holds food-group and macro targets for one day.
type DailyTargets struct {
	FoodGroups map[string]Target `json:"foodGroups,omitempty" yaml:"foodGroups" validate:"dive"`
	Macros     map[string]Target `json:"macros,omitempty" yaml:"macros" validate:"dive"`
}

// TherapeuticTargetsSnapshot is the per-protocol daily target set.
type TherapeuticTargetsSnapshot struct {
	ProtocolKey     string       `json:"protocolKey,omitempty" yaml:"protocolKey"`
	ProtocolVersion string       `json:"protocolVersion,omitempty" yaml:"protocolVersion"`
	Daily           DailyTargets `json:"daily" yaml:"daily"`
	ComputedAt      string       `json:"computedAt,omitempty" yaml:"computedAt"`
}

// IngredientRef is one ingredient line of a generated meal.
type IngredientRef struct {
	NevoCode    string  `json:"nevoCode,omitempty" yaml:"nevoCode"`
	DisplayName string  `json:"displayName,omitempty" yaml:"displayName"`
	QuantityG   float64 `json:"quantityG" yaml:"quantityG"`
}

// Meal is one generated meal. EstimatedMacros is sparse: a key is present
// only when the upstream estimate produced it.
type Meal struct {
	ID              string             `json:"id,omitempty" yaml:"id"`
	Name            string             `json:"name,omitempty" yaml:"name"`
	Slot            string             `json:"slot,omitempty" yaml:"slot"`
	IngredientRefs  []IngredientRef    `json:"ingredientRefs,omitempty" yaml:"ingredientRefs"`
	EstimatedMacros map[string]float64 `json:"estimatedMacros,omitempty" yaml:"estimatedMacros"`
}

// MealPlanDay is one day of a generated plan. Date is YYYY-MM-DD.
type MealPlanDay struct {
	Date  string `json:"date" yaml:"date" validate:"required"`
	Meals []Meal `json:"meals" yaml:"meals"`
}

// MealPlanResponse is a generated meal plan.
type MealPlanResponse struct {
	Days []MealPlanDay `json:"days" yaml:"days" validate:"dive"`
}

// EstimateRequest carries the opt-in therapeutic targets for a plan.
type EstimateRequest struct {
	TherapeuticTargets *TherapeuticTargetsSnapshot `json:"therapeuticTargets,omitempty" yaml:"therapeuticTargets"`
}

// DeficitEvent is a single day's shortfall against one target.
// Ephemeral: consumed by the deduplicator in the same estimation call.
type DeficitEvent struct {
	Code     string  `json:"code"`
	Severity string  `json:"severity"`
	Date     string  `json:"date"`
	Actual   float64 `json:"actual"`
	Target   float64 `json:"target"`
	Unit     string  `json:"unit"`
}

// Ratio returns actual/target. Callers only emit events with target > 0.
func (e DeficitEvent) Ratio() float64 {
	return e.Actual / e.Target
}

// Quantity is an amount with its unit.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// DayCoverage holds one day's actuals.
type DayCoverage struct {
	FoodGroups map[string]Quantity `json:"foodGroups"`
	Macros     map[string]Quantity `json:"macros,omitempty"`
}

// WeeklyCoverage sums daily actuals over the whole plan.
type WeeklyCoverage struct {
	Days       int                 `json:"days"`
	FoodGroups map[string]Quantity `json:"foodGroups"`
	Macros     map[string]Quantity `json:"macros,omitempty"`
}

// DeficitAlert is the single user-facing alert for a deficit code.
type DeficitAlert struct {
	Code      string `json:"code"`
	Severity  string `json:"severity"`
	MessageNl string `json:"messageNl"`
}

// SuggestionKind names the action a suggestion proposes.
type SuggestionKind string

const (
	SuggestionAddSide  SuggestionKind = "add_side"
	SuggestionAddSnack SuggestionKind = "add_snack"
)

// SuggestionTarget scopes a suggestion.
type SuggestionTarget struct {
	Date string `json:"date,omitempty"`
}

// SuggestionMetrics carries the worst-case numbers behind a suggestion.
type SuggestionMetrics struct {
	Actual float64 `json:"actual"`
	Target float64 `json:"target"`
	Unit   string  `json:"unit"`
	Ratio  float64 `json:"ratio"`
}

// Suggestion is an actionable proposal derived from a deficit alert.
type Suggestion struct {
	Kind      SuggestionKind     `json:"kind"`
	Code      string             `json:"code"`
	TitleNl   string             `json:"titleNl"`
	DetailNl  string             `json:"detailNl,omitempty"`
	AppliesTo *SuggestionTarget  `json:"appliesTo,omitempty"`
	Metrics   *SuggestionMetrics `json:"metrics,omitempty"`
}

// DeficitReport groups alerts and suggestions.
type DeficitReport struct {
	Alerts      []DeficitAlert `json:"alerts"`
	Suggestions []Suggestion   `json:"suggestions,omitempty"`
}

// TherapeuticCoverageSnapshot is the output of one estimation run.
type TherapeuticCoverageSnapshot struct {
	DailyByDate map[string]DayCoverage `json:"dailyByDate"`
	Weekly      *WeeklyCoverage        `json:"weekly,omitempty"`
	Deficits    *DeficitReport         `json:"deficits,omitempty"`
	ComputedAt  string                 `json:"computedAt"`
}
