// internal/coverage/format.go
package coverage

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/nutriprotocol/internal/types"
)

// Dutch month abbreviations, as used in short dates ("5 jan").
var monthsNl = [12]string{"jan", "feb", "mrt", "apr", "mei", "jun", "jul", "aug", "sep", "okt", "nov", "dec"}

// macroLabelsNl names macros in user-facing text.
var macroLabelsNl = map[string]string{
	"protein": "Eiwit",
	"carbs":   "Koolhydraten",
	"fat":     "Vet",
	"fiber":   "Vezels",
	"energy":  "Energie",
}

// shortDateNl formats a YYYY-MM-DD date as "5 jan". Unparseable dates are
// returned unchanged.
func shortDateNl(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%d %s", t.Day(), monthsNl[t.Month()-1])
}

// formatAmountNl rounds to one decimal and uses a decimal comma.
func formatAmountNl(v float64) string {
	rounded := math.Round(v*10) / 10
	return strings.Replace(strconv.FormatFloat(rounded, 'f', -1, 64), ".", ",", 1)
}

// macroLabelNl returns the Dutch label of a macro key, or the key itself.
func macroLabelNl(key string) string {
	if label, ok := macroLabelsNl[key]; ok {
		return label
	}
	return key
}

// macroKey extracts the macro key from a macro deficit code.
func macroKey(code string) (string, bool) {
	key, ok := strings.CutPrefix(code, CodeMacroUnder80)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// subjectNl names what a deficit code is about, lowercase for use mid-sentence.
func subjectNl(code string) string {
	if code == CodeVegetablesUnder80 {
		return "groenten"
	}
	if key, ok := macroKey(code); ok {
		return strings.ToLower(macroLabelNl(key))
	}
	return code
}

// alertMessage renders the Dutch alert text for the worst event of a code.
func alertMessage(ev types.DeficitEvent) string {
	return fmt.Sprintf("Te weinig %s op %s: %s van %s %s.",
		subjectNl(ev.Code),
		shortDateNl(ev.Date),
		formatAmountNl(ev.Actual),
		formatAmountNl(ev.Target),
		ev.Unit,
	)
}
