// internal/coverage/suggest.go
package coverage

import (
	"fmt"
	"math"

	"github.com/solatis/nutriprotocol/internal/types"
)

/*
 * Suggestion building.
 *
 * Maps deduplicated alerts to actionable suggestions: add_side for the
 * vegetable deficit, add_snack for a macro deficit. Alerts are not scored, so
 * alert order is the priority: suggestions keep it, drop later duplicates of
 * a (kind, titleNl) pair and stop at types.MaxSuggestions.
 *
 * Macros without a dedicated snack title share the generic title, so several
 * of them collapse into a single suggestion.
 */

const (
	titleAddSide      = "Voeg een groente-bijgerecht toe"
	titleAddSnackMisc = "Voeg een extra snack toe"
)

var snackTitlesNl = map[string]string{
	"protein": "Voeg een eiwitrijke snack toe",
	"fiber":   "Voeg een vezelrijke snack toe",
	"energy":  "Voeg een energierijke snack toe",
}

type suggestionKey struct {
	kind  types.SuggestionKind
	title string
}

// BuildSuggestions derives at most types.MaxSuggestions suggestions from
// alerts. worstByCode supplies the date and metrics of each suggestion; a
// code missing from it yields a suggestion without them.
func BuildSuggestions(alerts []types.DeficitAlert, worstByCode map[string]types.DeficitEvent) []types.Suggestion {
	var suggestions []types.Suggestion
	seen := make(map[suggestionKey]bool)

	for _, alert := range alerts {
		s, ok := suggestionFor(alert.Code)
		if !ok {
			continue
		}
		k := suggestionKey{kind: s.Kind, title: s.TitleNl}
		if seen[k] {
			continue
		}
		seen[k] = true

		if worst, ok := worstByCode[alert.Code]; ok {
			s.AppliesTo = &types.SuggestionTarget{Date: worst.Date}
			s.Metrics = &types.SuggestionMetrics{
				Actual: worst.Actual,
				Target: worst.Target,
				Unit:   worst.Unit,
				Ratio:  roundRatio(worst.Ratio()),
			}
			s.DetailNl = detailNl(worst)
		}

		suggestions = append(suggestions, s)
		if len(suggestions) == types.MaxSuggestions {
			break
		}
	}

	return suggestions
}

// suggestionFor maps a deficit code to its suggestion kind and title.
func suggestionFor(code string) (types.Suggestion, bool) {
	if code == CodeVegetablesUnder80 {
		return types.Suggestion{Kind: types.SuggestionAddSide, Code: code, TitleNl: titleAddSide}, true
	}
	key, ok := macroKey(code)
	if !ok {
		return types.Suggestion{}, false
	}
	title, ok := snackTitlesNl[key]
	if !ok {
		title = titleAddSnackMisc
	}
	return types.Suggestion{Kind: types.SuggestionAddSnack, Code: code, TitleNl: title}, true
}

func detailNl(worst types.DeficitEvent) string {
	return fmt.Sprintf("Op %s kwam %s uit op %s van %s %s.",
		shortDateNl(worst.Date),
		subjectNl(worst.Code),
		formatAmountNl(worst.Actual),
		formatAmountNl(worst.Target),
		worst.Unit,
	)
}

// roundRatio rounds to three decimals.
func roundRatio(r float64) float64 {
	return math.Round(r*1000) / 1000
}
