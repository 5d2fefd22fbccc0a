// internal/rules/context_test.go
package rules

import (
	"testing"
	"time"

	"github.com/solatis/nutriprotocol/internal/types"
)

func TestBuildContext_Profile(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	height := 172.0
	in := ProfileInput{
		Profile: &types.HealthProfile{
			UserID:    "u1",
			Sex:       "female",
			BirthDate: "1990-06-16",
			HeightCm:  &height,
			DietKey:   "wahls",
		},
		Protocol: &types.Protocol{ID: "p1", Key: "ms_v1", Version: 2},
	}

	ctx := BuildContext(in, now)

	if ctx.Sex == nil || *ctx.Sex != "female" {
		t.Errorf("Sex = %v, want female", ctx.Sex)
	}
	if ctx.AgeYears == nil || *ctx.AgeYears != 34 {
		t.Errorf("AgeYears = %v, want 34 (birthday tomorrow)", ctx.AgeYears)
	}
	if ctx.HeightCm == nil || *ctx.HeightCm != 172 {
		t.Errorf("HeightCm = %v, want 172", ctx.HeightCm)
	}
	if ctx.HeightCm == &height {
		t.Error("HeightCm aliases the profile value")
	}
	if ctx.WeightKg != nil {
		t.Errorf("WeightKg = %v, want nil", *ctx.WeightKg)
	}
	if ctx.ProtocolKey == nil || *ctx.ProtocolKey != "ms_v1" {
		t.Errorf("ProtocolKey = %v, want ms_v1", ctx.ProtocolKey)
	}
	if ctx.ProtocolVersion == nil || *ctx.ProtocolVersion != 2 {
		t.Errorf("ProtocolVersion = %v, want 2", ctx.ProtocolVersion)
	}
	if ctx.Overrides != nil {
		t.Errorf("Overrides = %v, want nil", ctx.Overrides)
	}
}

func TestBuildContext_Age(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		birthDate string
		want      float64
		wantSet   bool
	}{
		{"birthday today", "1985-03-01", 40, true},
		{"birthday passed", "1985-02-28", 40, true},
		{"birthday ahead", "1985-03-02", 39, true},
		{"newborn", "2025-03-01", 0, true},
		{"future", "2026-01-01", 0, false},
		{"implausible", "1800-01-01", 0, false},
		{"malformed", "01-03-1985", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := BuildContext(ProfileInput{Profile: &types.HealthProfile{BirthDate: tt.birthDate}}, now)
			if (ctx.AgeYears != nil) != tt.wantSet {
				t.Fatalf("AgeYears set = %v, want %v", ctx.AgeYears != nil, tt.wantSet)
			}
			if tt.wantSet && *ctx.AgeYears != tt.want {
				t.Errorf("AgeYears = %v, want %v", *ctx.AgeYears, tt.want)
			}
		})
	}
}

func TestBuildContext_AgeUsesLocalCalendarDate(t *testing.T) {
	cet := time.FixedZone("CET", 1*60*60)
	est := time.FixedZone("EST", -5*60*60)

	tests := []struct {
		name      string
		birthDate string
		now       time.Time
		want      float64
	}{
		{"birthday just after local midnight ahead of UTC", "2000-01-01", time.Date(2026, 1, 1, 0, 30, 0, 0, cet), 26},
		{"eve of birthday behind UTC", "2000-01-01", time.Date(2025, 12, 31, 23, 30, 0, 0, est), 25},
		{"leap day birthday not yet reached", "2000-02-29", time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC), 24},
		{"leap day birthday passed", "2000-02-29", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := BuildContext(ProfileInput{Profile: &types.HealthProfile{BirthDate: tt.birthDate}}, tt.now)
			if ctx.AgeYears == nil {
				t.Fatalf("AgeYears = nil, want %v", tt.want)
			}
			if *ctx.AgeYears != tt.want {
				t.Errorf("AgeYears = %v, want %v", *ctx.AgeYears, tt.want)
			}
		})
	}
}

func TestBuildContext_OverrideLayering(t *testing.T) {
	defaults := map[string]any{"vitamin_d_iu": 1000.0, "region": "NL"}
	user := map[string]any{"vitamin_d_iu": 4000.0, "pregnant": true}

	ctx := BuildContext(ProfileInput{ProtocolDefaults: defaults, UserOverrides: user}, time.Now())

	want := map[string]any{"vitamin_d_iu": 4000.0, "region": "NL", "pregnant": true}
	if len(ctx.Overrides) != len(want) {
		t.Fatalf("Overrides = %v, want %v", ctx.Overrides, want)
	}
	for k, v := range want {
		if ctx.Overrides[k] != v {
			t.Errorf("Overrides[%s] = %v, want %v", k, ctx.Overrides[k], v)
		}
	}

	ctx.Overrides["region"] = "BE"
	if defaults["region"] != "NL" {
		t.Error("BuildContext result aliases the defaults map")
	}
}

func TestBuildContext_EmptyStringsUnset(t *testing.T) {
	ctx := BuildContext(ProfileInput{
		Profile:  &types.HealthProfile{UserID: "u1"},
		Protocol: &types.Protocol{},
	}, time.Now())

	if ctx.Sex != nil || ctx.DietKey != nil || ctx.ProtocolKey != nil {
		t.Errorf("empty strings produced values: %+v", ctx)
	}
}
