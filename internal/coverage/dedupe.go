// internal/coverage/dedupe.go
package coverage

import (
	"github.com/solatis/nutriprotocol/internal/types"
)

/*
 * Deficit deduplication and weekly rollup.
 *
 * A plan that misses the vegetable target on five days raises five events
 * with the same code. Dedupe collapses them into one alert per code whose
 * message names the worst day: the event with the lowest actual/target ratio.
 * Equal ratios keep the earlier event.
 *
 * Alerts keep the first-seen order of their codes; the suggestion builder
 * relies on that order as its priority signal.
 */

// DedupeResult holds one alert per code and the event each alert describes.
type DedupeResult struct {
	Alerts      []types.DeficitAlert
	WorstByCode map[string]types.DeficitEvent
}

// Dedupe collapses deficit events into one alert per code.
func Dedupe(events []types.DeficitEvent) DedupeResult {
	result := DedupeResult{WorstByCode: make(map[string]types.DeficitEvent)}

	var codes []string
	for _, ev := range events {
		worst, seen := result.WorstByCode[ev.Code]
		if !seen {
			codes = append(codes, ev.Code)
			result.WorstByCode[ev.Code] = ev
			continue
		}
		if ev.Ratio() < worst.Ratio() {
			result.WorstByCode[ev.Code] = ev
		}
	}

	result.Alerts = make([]types.DeficitAlert, 0, len(codes))
	for _, code := range codes {
		worst := result.WorstByCode[code]
		result.Alerts = append(result.Alerts, types.DeficitAlert{
			Code:      code,
			Severity:  worst.Severity,
			MessageNl: alertMessage(worst),
		})
	}

	return result
}

// Rollup sums daily actuals into weekly totals.
// Returns nil when there are no days. Units are taken from the first day
// reporting a key.
func Rollup(days []types.DayCoverage) *types.WeeklyCoverage {
	if len(days) == 0 {
		return nil
	}

	weekly := &types.WeeklyCoverage{
		Days:       len(days),
		FoodGroups: make(map[string]types.Quantity),
	}

	for _, day := range days {
		addQuantities(weekly.FoodGroups, day.FoodGroups)
		if len(day.Macros) == 0 {
			continue
		}
		if weekly.Macros == nil {
			weekly.Macros = make(map[string]types.Quantity)
		}
		addQuantities(weekly.Macros, day.Macros)
	}

	return weekly
}

func addQuantities(dst, src map[string]types.Quantity) {
	for key, q := range src {
		acc, ok := dst[key]
		if !ok {
			dst[key] = q
			continue
		}
		acc.Value += q.Value
		dst[key] = acc
	}
}
