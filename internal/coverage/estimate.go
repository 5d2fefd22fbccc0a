// internal/coverage/estimate.go
package coverage

import (
	"sort"
	"time"

	"github.com/solatis/nutriprotocol/internal/types"
)

/*
 * Coverage estimation over a generated meal plan.
 *
 * Walks the plan day by day, sums food-group and macro actuals, compares them
 * to the absolute daily targets and raises one DeficitEvent per (day, target)
 * below types.DeficitThreshold of the target.
 *
 * Food groups:
 *   - vegetablesG: quantityG of the second and third ingredient-ref slot of
 *     every meal (slot one is the meal's base ingredient)
 *   - fruitG: always 0; fruit is not derived from the plan yet and raises no
 *     deficit
 *
 * Macros are summed only from meals that report the key. A macro no meal of
 * a day reports is omitted from that day rather than recorded as zero, and an
 * omitted macro raises no deficit. The "energy" target reads the meal's
 * "calories" estimate.
 *
 * Days sharing a date are merged in first-seen order. Event order is
 * deterministic: days in plan order, vegetables first, then macro keys
 * ascending.
 */

// Deficit codes.
const (
	CodeVegetablesUnder80 = "VEG_TARGET_UNDER_80"
	CodeMacroUnder80      = "MACRO_TARGET_UNDER_80:"
)

// SeverityWarn is the severity of every deficit raised by the estimator.
const SeverityWarn = "warn"

const gramUnit = "g"

// vegetableSlots are the ingredient-ref indices counted as vegetables.
var vegetableSlots = []int{1, 2}

// macroSourceKeys maps a target key to the meal estimate key it reads.
var macroSourceKeys = map[string]string{
	"energy": "calories",
}

// defaultMacroUnits are used when a target carries no absolute unit.
var defaultMacroUnits = map[string]string{
	"energy": "kcal",
}

// DayResult is one plan date with its actuals.
type DayResult struct {
	Date     string
	Coverage types.DayCoverage
}

// Estimation is the ordered intermediate result of one estimation run.
type Estimation struct {
	Days   []DayResult
	Events []types.DeficitEvent
}

// Estimate builds the coverage snapshot for a plan.
// Returns nil when the request carries no therapeutic targets.
func Estimate(plan types.MealPlanResponse, req types.EstimateRequest, now time.Time) *types.TherapeuticCoverageSnapshot {
	if req.TherapeuticTargets == nil {
		return nil
	}

	est := EstimateDays(plan, req.TherapeuticTargets.Daily)
	return assemble(est, now)
}

// assemble turns an Estimation into the output snapshot.
func assemble(est Estimation, now time.Time) *types.TherapeuticCoverageSnapshot {
	snapshot := &types.TherapeuticCoverageSnapshot{
		DailyByDate: make(map[string]types.DayCoverage, len(est.Days)),
		ComputedAt:  now.Format(time.RFC3339),
	}

	days := make([]types.DayCoverage, 0, len(est.Days))
	for _, d := range est.Days {
		snapshot.DailyByDate[d.Date] = d.Coverage
		days = append(days, d.Coverage)
	}
	snapshot.Weekly = Rollup(days)

	if len(est.Events) > 0 {
		deduped := Dedupe(est.Events)
		snapshot.Deficits = &types.DeficitReport{
			Alerts:      deduped.Alerts,
			Suggestions: BuildSuggestions(deduped.Alerts, deduped.WorstByCode),
		}
	}

	return snapshot
}

// EstimateDays computes per-day actuals and deficit events.
func EstimateDays(plan types.MealPlanResponse, targets types.DailyTargets) Estimation {
	macroKeys := sortedTargetKeys(targets.Macros)

	var est Estimation
	for _, group := range groupByDate(plan.Days) {
		day := dayCoverage(group.meals, targets, macroKeys)
		est.Days = append(est.Days, DayResult{Date: group.date, Coverage: day})
		est.Events = append(est.Events, dayEvents(group.date, day, targets, macroKeys)...)
	}
	return est
}

type dateGroup struct {
	date  string
	meals []types.Meal
}

// groupByDate merges plan days sharing a date, keeping first-seen order.
func groupByDate(days []types.MealPlanDay) []dateGroup {
	index := make(map[string]int, len(days))
	groups := make([]dateGroup, 0, len(days))
	for _, d := range days {
		i, ok := index[d.Date]
		if !ok {
			i = len(groups)
			index[d.Date] = i
			groups = append(groups, dateGroup{date: d.Date})
		}
		groups[i].meals = append(groups[i].meals, d.Meals...)
	}
	return groups
}

// dayCoverage sums one date's actuals.
func dayCoverage(meals []types.Meal, targets types.DailyTargets, macroKeys []string) types.DayCoverage {
	day := types.DayCoverage{
		FoodGroups: map[string]types.Quantity{
			types.FoodGroupVegetables: {Value: vegetableGrams(meals), Unit: gramUnit},
			types.FoodGroupFruit:      {Value: 0, Unit: gramUnit},
		},
	}

	for _, key := range macroKeys {
		total, reported := macroTotal(meals, key)
		if !reported {
			continue
		}
		if day.Macros == nil {
			day.Macros = make(map[string]types.Quantity)
		}
		day.Macros[key] = types.Quantity{Value: total, Unit: macroUnit(key, targets.Macros[key])}
	}

	return day
}

func vegetableGrams(meals []types.Meal) float64 {
	var total float64
	for _, meal := range meals {
		for _, slot := range vegetableSlots {
			if slot < len(meal.IngredientRefs) {
				total += meal.IngredientRefs[slot].QuantityG
			}
		}
	}
	return total
}

// macroTotal sums a macro over the meals that report it.
func macroTotal(meals []types.Meal, key string) (float64, bool) {
	source := key
	if mapped, ok := macroSourceKeys[key]; ok {
		source = mapped
	}

	var total float64
	reported := false
	for _, meal := range meals {
		if v, ok := meal.EstimatedMacros[source]; ok {
			total += v
			reported = true
		}
	}
	return total, reported
}

func macroUnit(key string, target types.Target) string {
	if target.IsAbsolute() && target.Unit != "" {
		return target.Unit
	}
	if unit, ok := defaultMacroUnits[key]; ok {
		return unit
	}
	return gramUnit
}

// dayEvents raises the deficit events of one date.
func dayEvents(date string, day types.DayCoverage, targets types.DailyTargets, macroKeys []string) []types.DeficitEvent {
	var events []types.DeficitEvent

	if target, ok := targets.FoodGroups[types.FoodGroupVegetables]; ok {
		actual := day.FoodGroups[types.FoodGroupVegetables]
		if ev, ok := deficit(CodeVegetablesUnder80, date, actual.Value, target, gramUnit); ok {
			events = append(events, ev)
		}
	}

	for _, key := range macroKeys {
		actual, reported := day.Macros[key]
		if !reported {
			continue
		}
		if ev, ok := deficit(CodeMacroUnder80+key, date, actual.Value, targets.Macros[key], actual.Unit); ok {
			events = append(events, ev)
		}
	}

	return events
}

// deficit returns an event when actual falls below the threshold of an
// absolute, positive target.
func deficit(code, date string, actual float64, target types.Target, fallbackUnit string) (types.DeficitEvent, bool) {
	if !target.IsAbsolute() || target.Value <= 0 {
		return types.DeficitEvent{}, false
	}
	if actual >= types.DeficitThreshold*target.Value {
		return types.DeficitEvent{}, false
	}
	unit := target.Unit
	if unit == "" {
		unit = fallbackUnit
	}
	return types.DeficitEvent{
		Code:     code,
		Severity: SeverityWarn,
		Date:     date,
		Actual:   actual,
		Target:   target.Value,
		Unit:     unit,
	}, true
}

func sortedTargetKeys(targets map[string]types.Target) []string {
	keys := make([]string, 0, len(targets))
	for k := range targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
