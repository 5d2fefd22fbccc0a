package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/nutriprotocol/internal/types"
)

// openTestDB opens a migrated sqlite database in a temp directory.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(ctx, "sqlite://"+path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = MigrateUp(ctx, db)
	require.NoError(t, err)
	return db
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(openTestDB(t))
	require.NoError(t, err)
	return store
}

func seedProtocol(t *testing.T, s *Store) types.Protocol {
	t.Helper()
	p := types.Protocol{ID: "p-ms", Key: "ms_v1", Version: 2}
	require.NoError(t, s.SaveProtocol(context.Background(), p))
	return p
}

func TestStore_Protocol(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seeded := seedProtocol(t, s)

	got, err := s.Protocol(ctx, "p-ms")
	require.NoError(t, err)
	assert.Equal(t, seeded, *got)

	require.NoError(t, s.SaveProtocol(ctx, types.Protocol{ID: "p-ms-3", Key: "ms_v1", Version: 3}))
	latest, err := s.ProtocolByKey(ctx, "ms_v1")
	require.NoError(t, err)
	assert.Equal(t, "p-ms-3", latest.ID)
	assert.Equal(t, 3.0, latest.Version)

	_, err = s.Protocol(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrProtocolNotFound)
	_, err = s.ProtocolByKey(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrProtocolNotFound)
}

func TestStore_ActiveRules(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := seedProtocol(t, s)

	rules := []types.SupplementRule{
		{
			ID: "r2", ProtocolID: p.ID, SupplementKey: "vitamin_d", RuleKey: "vitd_women",
			Kind: "dose", Severity: "info", MessageNl: "Vitamine D",
			WhenJSON: types.WhenJSON(`{"all":[{"field":"sex","op":"eq","value":"female"}]}`),
			IsActive: true,
		},
		{
			ID: "r1", ProtocolID: p.ID, SupplementKey: "omega3", RuleKey: "omega_all",
			Kind: "dose", Severity: "info", MessageNl: "Omega 3",
			IsActive: true,
		},
		{
			ID: "r3", ProtocolID: p.ID, SupplementKey: "iron", RuleKey: "iron_off",
			Kind: "dose", Severity: "warn", IsActive: false,
		},
	}
	require.NoError(t, s.SaveRules(ctx, rules))

	got, err := s.ActiveRules(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by rule key
	assert.Equal(t, "omega_all", got[0].RuleKey)
	assert.True(t, got[0].WhenJSON.IsNull(), "null expression stored as NULL")
	assert.Equal(t, "vitd_women", got[1].RuleKey)
	assert.JSONEq(t, string(rules[0].WhenJSON), string(got[1].WhenJSON))
	assert.True(t, got[1].IsActive)

	// Upsert replaces in place
	rules[0].IsActive = false
	require.NoError(t, s.SaveRules(ctx, rules[:1]))
	got, err = s.ActiveRules(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "omega_all", got[0].RuleKey)
}

func TestStore_ActiveRulesKeepsMalformedExpression(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := seedProtocol(t, s)

	require.NoError(t, s.SaveRules(ctx, []types.SupplementRule{{
		ID: "bad", ProtocolID: p.ID, SupplementKey: "x", RuleKey: "bad",
		Kind: "dose", Severity: "info", IsActive: true,
		WhenJSON: types.WhenJSON(`{"all":[{"field":"sex","op":"gt","value":"f"}]}`),
	}}))

	got, err := s.ActiveRules(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, string(got[0].WhenJSON), `"gt"`)
}

func TestStore_Profile(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := seedProtocol(t, s)

	height := 168.0
	require.NoError(t, s.SaveProfile(ctx, types.HealthProfile{
		UserID:     "u1",
		ProtocolID: p.ID,
		Sex:        "female",
		BirthDate:  "1982-03-14",
		HeightCm:   &height,
		DietKey:    "wahls",
	}))

	got, err := s.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, p.ID, got.ProtocolID)
	assert.Equal(t, "female", got.Sex)
	assert.Equal(t, "1982-03-14", got.BirthDate)
	require.NotNil(t, got.HeightCm)
	assert.Equal(t, 168.0, *got.HeightCm)
	assert.Nil(t, got.WeightKg)
	assert.Equal(t, "wahls", got.DietKey)

	_, err = s.Profile(ctx, "nobody")
	assert.ErrorIs(t, err, types.ErrProfileNotFound)
}

func TestStore_Overrides(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := seedProtocol(t, s)

	require.NoError(t, s.SetProtocolDefault(ctx, p.ID, "vitamin_d_iu", 1000))
	require.NoError(t, s.SetProtocolDefault(ctx, p.ID, "region", "NL"))
	require.NoError(t, s.SetUserOverride(ctx, "u1", "vitamin_d_iu", 2000))
	require.NoError(t, s.SetUserOverride(ctx, "u1", "pregnant", false))
	require.NoError(t, s.SetUserOverride(ctx, "u1", "tags", []string{"a", "b"}))

	defaults, err := s.ProtocolDefaults(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"vitamin_d_iu": 1000.0, "region": "NL"}, defaults)

	user, err := s.UserOverrides(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"vitamin_d_iu": 2000.0,
		"pregnant":     false,
		"tags":         []any{"a", "b"},
	}, user)

	require.NoError(t, s.SetUserOverride(ctx, "u1", "vitamin_d_iu", 4000))
	require.NoError(t, s.DeleteUserOverride(ctx, "u1", "tags"))
	require.NoError(t, s.DeleteUserOverride(ctx, "u1", "never-set"))

	user, err = s.UserOverrides(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"vitamin_d_iu": 4000.0, "pregnant": false}, user)

	empty, err := s.UserOverrides(ctx, "u2")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestStore_SaveRulesRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := seedProtocol(t, s)

	err := s.SaveRules(ctx, []types.SupplementRule{
		{ID: "ok", ProtocolID: p.ID, SupplementKey: "a", RuleKey: "a", Kind: "dose", Severity: "info", IsActive: true},
		// Unknown protocol violates the foreign key
		{ID: "orphan", ProtocolID: "nope", SupplementKey: "b", RuleKey: "b", Kind: "dose", Severity: "info", IsActive: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save rule b")

	got, err := s.ActiveRules(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpen_RejectsUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "mysql://localhost/db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database scheme")

	_, err = Open(context.Background(), "sqlite://")
	require.Error(t, err)
}

func TestDataSourceFor(t *testing.T) {
	tests := []struct {
		url        string
		wantDriver string
		wantDSN    string
	}{
		{"sqlite://data/np.db", "sqlite3", "data/np.db?_foreign_keys=on"},
		{"sqlite:///var/lib/np.db", "sqlite3", "/var/lib/np.db?_foreign_keys=on"},
		{"postgres://np@localhost:5432/np?sslmode=disable", "postgres", "postgres://np@localhost:5432/np?sslmode=disable"},
		{"postgresql://localhost/np", "postgres", "postgresql://localhost/np"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			driver, dsn, err := dataSourceFor(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDriver, driver)
			assert.Equal(t, tt.wantDSN, dsn)
		})
	}
}
