package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/nutriprotocol/internal/core/db"
	"github.com/solatis/nutriprotocol/internal/types"
)

const rulesFixture = `
protocol:
  id: p-ms
  protocolKey: ms_v1
  protocolVersion: 2
protocolDefaults:
  region: NL
rules:
  - id: vitd
    supplementKey: vitamin_d
    ruleKey: vitd_women
    kind: dose
    severity: info
    when:
      all:
        - field: sex
          op: eq
          value: female
  - id: omega
    supplementKey: omega3
    ruleKey: omega_all
    kind: dose
    severity: info
  - id: broken
    supplementKey: iron
    ruleKey: iron_gt
    kind: dose
    severity: info
    when:
      all:
        - field: ageYears
          op: gt
          value: 18
`

const contextFixture = `
profile:
  userId: u1
  sex: female
  birthDate: "1982-03-14"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the CLI and returns stdout, stderr and the error.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

type evaluateOutput struct {
	ApplicableRules []types.SupplementRule `json:"applicableRules"`
	Meta            struct {
		Total           int `json:"total"`
		Applicable      int `json:"applicable"`
		Skipped         int `json:"skipped"`
		InvalidWhenJSON int `json:"invalidWhenJson"`
	} `json:"meta"`
	RuleMetaByID map[string]json.RawMessage `json:"ruleMetaById"`
}

func TestRulesEvaluate_Fixtures(t *testing.T) {
	dir := t.TempDir()
	rulesPath := writeFile(t, dir, "rules.yaml", rulesFixture)
	ctxPath := writeFile(t, dir, "ctx.yaml", contextFixture)

	stdout, stderr, err := run(t, "rules", "evaluate", "--rules", rulesPath, "--context", ctxPath, "--at", "2025-01-10")
	require.NoError(t, err)

	var out evaluateOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, 3, out.Meta.Total)
	assert.Equal(t, 2, out.Meta.Applicable)
	assert.Equal(t, 1, out.Meta.InvalidWhenJSON)
	require.Len(t, out.ApplicableRules, 2)
	assert.Equal(t, "vitd_women", out.ApplicableRules[0].RuleKey)
	assert.Contains(t, out.RuleMetaByID, "vitd")

	assert.Contains(t, stderr, "invalid rule expression excluded")
	assert.Contains(t, stderr, "iron_gt")
}

func TestMetricsOut(t *testing.T) {
	dir := t.TempDir()
	rulesPath := writeFile(t, dir, "rules.yaml", rulesFixture)
	ctxPath := writeFile(t, dir, "ctx.yaml", contextFixture)
	planPath := writeFile(t, dir, "plan.json", `{"days": [{"date": "2025-01-06", "meals": []}]}`)

	rulesMetrics := filepath.Join(dir, "rules.prom")
	_, _, err := run(t, "rules", "evaluate", "--rules", rulesPath, "--context", ctxPath, "--at", "2025-01-10", "--metrics-out", rulesMetrics)
	require.NoError(t, err)

	data, err := os.ReadFile(rulesMetrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nutriprotocol_rules_filter_runs_total 1")
	assert.Contains(t, string(data), `nutriprotocol_rules_rule_outcomes_total{outcome="invalid"} 1`)

	coverageMetrics := filepath.Join(dir, "coverage.prom")
	_, _, err = run(t, "coverage", "estimate", "--plan", planPath, "--metrics-out", coverageMetrics)
	require.NoError(t, err)

	data, err = os.ReadFile(coverageMetrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nutriprotocol_coverage_estimations_skipped_total 1")

	// Without the flag nothing is written
	_, _, err = run(t, "rules", "evaluate", "--rules", rulesPath, "--context", ctxPath)
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestRulesEvaluate_RequiresInput(t *testing.T) {
	_, _, err := run(t, "rules", "evaluate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user or both --rules and --context")

	_, _, err = run(t, "rules", "evaluate", "--user", "u1", "--at", "10-01-2025")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --at")
}

func TestRulesValidate(t *testing.T) {
	dir := t.TempDir()
	rulesPath := writeFile(t, dir, "rules.yaml", rulesFixture)

	stdout, _, err := run(t, "rules", "validate", "--rules", rulesPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 rules have an invalid expression")

	var report validationReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Invalid)
	assert.False(t, report.Rules[2].Valid)
	assert.Contains(t, report.Rules[2].Error, "all[0].op")
}

func TestCoverageEstimate(t *testing.T) {
	dir := t.TempDir()
	planPath := writeFile(t, dir, "plan.json", `{"days": [
  {"date": "2025-01-06", "meals": [{"slot": "lunch", "estimatedMacros": {"protein": 50}}]},
  {"date": "2025-01-07", "meals": [{"slot": "lunch", "estimatedMacros": {"protein": 5}}]}
]}`)
	targetsPath := writeFile(t, dir, "targets.yaml", `
daily:
  macros:
    protein: {kind: absolute, value: 60, unit: g}
`)

	stdout, _, err := run(t, "coverage", "estimate", "--plan", planPath, "--targets", targetsPath)
	require.NoError(t, err)

	var snap types.TherapeuticCoverageSnapshot
	require.NoError(t, json.Unmarshal([]byte(stdout), &snap))
	require.NotNil(t, snap.Deficits)
	require.Len(t, snap.Deficits.Alerts, 1)
	assert.Equal(t, "Te weinig eiwit op 7 jan: 5 van 60 g.", snap.Deficits.Alerts[0].MessageNl)
	assert.NotEmpty(t, snap.ComputedAt)

	stdout, _, err = run(t, "coverage", "estimate", "--plan", planPath)
	require.NoError(t, err)
	assert.Equal(t, "null\n", stdout)
}

func TestMigrateImportEvaluate_Database(t *testing.T) {
	dir := t.TempDir()
	dbURL := "sqlite://" + filepath.Join(dir, "np.db")
	rulesPath := writeFile(t, dir, "rules.yaml", rulesFixture)

	_, _, err := run(t, "migrate", "--db-url", dbURL)
	require.NoError(t, err)

	stdout, _, err := run(t, "migrate", "status", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Contains(t, stdout, "001_initial_schema.sql")
	assert.Contains(t, stdout, "applied")

	_, _, err = run(t, "rules", "import", "--rules", rulesPath, "--db-url", dbURL)
	require.NoError(t, err)

	// Profiles are owned by the surrounding application; seed one directly
	ctx := context.Background()
	database, err := db.Open(ctx, dbURL)
	require.NoError(t, err)
	store, err := db.NewStore(database)
	require.NoError(t, err)
	require.NoError(t, store.SaveProfile(ctx, types.HealthProfile{UserID: "u1", ProtocolID: "p-ms", Sex: "male"}))
	require.NoError(t, store.SetUserOverride(ctx, "u1", "region", "BE"))
	require.NoError(t, database.Close())

	stdout, _, err = run(t, "rules", "evaluate", "--user", "u1", "--db-url", dbURL, "--log-level", "debug")
	require.NoError(t, err)

	var out evaluateOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, 3, out.Meta.Total)
	assert.Equal(t, 1, out.Meta.Applicable, "male user only gets the unconditional rule")
	assert.Equal(t, 1, out.Meta.Skipped)
	assert.Equal(t, 1, out.Meta.InvalidWhenJSON)
	require.Len(t, out.ApplicableRules, 1)
	assert.Equal(t, "omega_all", out.ApplicableRules[0].RuleKey)

	_, _, err = run(t, "rules", "evaluate", "--user", "nobody", "--db-url", dbURL)
	assert.ErrorIs(t, err, types.ErrProfileNotFound)
}

func TestRoot_InvalidConfig(t *testing.T) {
	_, _, err := run(t, "migrate", "--db-url", "mysql://localhost/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, _, err = run(t, "migrate", "--log-level", "verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
