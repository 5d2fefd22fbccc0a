// internal/rules/context.go
package rules

import (
	"time"

	"github.com/solatis/nutriprotocol/internal/types"
)

// ProfileInput gathers what BuildContext needs. Every part is optional.
type ProfileInput struct {
	Profile          *types.HealthProfile
	Protocol         *types.Protocol
	ProtocolDefaults map[string]any // protocol-level override defaults
	UserOverrides    map[string]any // user-specific exceptions
}

// BuildContext assembles a UserRuleContext from a health profile, the active
// protocol and two override layers. User overrides win over protocol defaults.
// Inputs are never mutated; the returned Overrides map is freshly allocated.
// Age is computed in whole years at now; an unparseable birth date leaves it unset.
func BuildContext(in ProfileInput, now time.Time) types.UserRuleContext {
	var ctx types.UserRuleContext

	if p := in.Profile; p != nil {
		ctx.Sex = nonEmpty(p.Sex)
		ctx.DietKey = nonEmpty(p.DietKey)
		ctx.HeightCm = copyFloat(p.HeightCm)
		ctx.WeightKg = copyFloat(p.WeightKg)
		if age, ok := ageYears(p.BirthDate, now); ok {
			ctx.AgeYears = &age
		}
	}

	if pr := in.Protocol; pr != nil {
		ctx.ProtocolKey = nonEmpty(pr.Key)
		version := pr.Version
		ctx.ProtocolVersion = &version
	}

	if len(in.ProtocolDefaults) > 0 || len(in.UserOverrides) > 0 {
		ctx.Overrides = make(map[string]any, len(in.ProtocolDefaults)+len(in.UserOverrides))
		for k, v := range in.ProtocolDefaults {
			ctx.Overrides[k] = v
		}
		for k, v := range in.UserOverrides {
			ctx.Overrides[k] = v
		}
	}

	return ctx
}

// ageYears returns completed years between birthDate (YYYY-MM-DD) and the
// calendar date of now in now's own location. A birthday counts from the
// first minute of that local day.
func ageYears(birthDate string, now time.Time) (float64, bool) {
	if birthDate == "" {
		return 0, false
	}
	dob, err := time.Parse(time.DateOnly, birthDate)
	if err != nil {
		return 0, false
	}
	y, m, d := now.Date()
	by, bm, bd := dob.Date()
	age := y - by
	if m < bm || (m == bm && d < bd) {
		age--
	}
	// Guard against implausible ages (DOB in the future or over 130 years ago)
	if age < 0 || age > 130 {
		return 0, false
	}
	return float64(age), true
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
