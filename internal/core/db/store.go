package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/nutriprotocol/internal/types"
)

// Store reads and writes protocol engine rows and converts them into
// internal/types values at the boundary.
//
// UserOverrides and ProtocolDefaults have the shape of an overrides source
// loader, so the override cache can read through them directly.
type Store struct {
	q *Queries
}

// NewStore loads the embedded named queries for db.
func NewStore(db *sqlx.DB) (*Store, error) {
	q, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &Store{q: q}, nil
}

type protocolRow struct {
	ID      string  `db:"id"`
	Key     string  `db:"protocol_key"`
	Version float64 `db:"version"`
}

type ruleRow struct {
	ID            string         `db:"id"`
	ProtocolID    string         `db:"protocol_id"`
	SupplementKey string         `db:"supplement_key"`
	RuleKey       string         `db:"rule_key"`
	Kind          string         `db:"kind"`
	Severity      string         `db:"severity"`
	WhenJSON      sql.NullString `db:"when_json"`
	MessageNl     string         `db:"message_nl"`
	IsActive      bool           `db:"is_active"`
}

type profileRow struct {
	UserID     string          `db:"user_id"`
	ProtocolID sql.NullString  `db:"protocol_id"`
	Sex        sql.NullString  `db:"sex"`
	BirthDate  sql.NullString  `db:"birth_date"`
	HeightCm   sql.NullFloat64 `db:"height_cm"`
	WeightKg   sql.NullFloat64 `db:"weight_kg"`
	DietKey    sql.NullString  `db:"diet_key"`
}

type overrideRow struct {
	Key       string `db:"override_key"`
	ValueJSON string `db:"value_json"`
}

// ActiveRules returns the active rules of a protocol ordered by rule key.
// Rows keep their raw when_json; validation happens in the rules engine.
func (s *Store) ActiveRules(ctx context.Context, protocolID string) ([]types.SupplementRule, error) {
	var rows []ruleRow
	if err := s.q.Select(ctx, "list-active-rules-by-protocol", &rows, protocolID, true); err != nil {
		return nil, fmt.Errorf("failed to list rules for protocol %s: %w", protocolID, err)
	}

	rules := make([]types.SupplementRule, 0, len(rows))
	for _, r := range rows {
		rule := types.SupplementRule{
			ID:            types.RuleID(r.ID),
			ProtocolID:    r.ProtocolID,
			SupplementKey: r.SupplementKey,
			RuleKey:       r.RuleKey,
			Kind:          r.Kind,
			Severity:      r.Severity,
			MessageNl:     r.MessageNl,
			IsActive:      r.IsActive,
		}
		if r.WhenJSON.Valid {
			rule.WhenJSON = types.WhenJSON(r.WhenJSON.String)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Protocol returns the protocol with the given id.
func (s *Store) Protocol(ctx context.Context, id string) (*types.Protocol, error) {
	return s.getProtocol(ctx, "get-protocol", id)
}

// ProtocolByKey returns the highest version of the protocol with the given key.
func (s *Store) ProtocolByKey(ctx context.Context, key string) (*types.Protocol, error) {
	return s.getProtocol(ctx, "get-protocol-by-key", key)
}

func (s *Store) getProtocol(ctx context.Context, query, arg string) (*types.Protocol, error) {
	var row protocolRow
	if err := s.q.Get(ctx, query, &row, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", types.ErrProtocolNotFound, arg)
		}
		return nil, fmt.Errorf("failed to load protocol %s: %w", arg, err)
	}
	return &types.Protocol{ID: row.ID, Key: row.Key, Version: row.Version}, nil
}

// Profile returns the health profile of a user.
func (s *Store) Profile(ctx context.Context, userID string) (*types.HealthProfile, error) {
	var row profileRow
	if err := s.q.Get(ctx, "get-user-profile", &row, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", types.ErrProfileNotFound, userID)
		}
		return nil, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}

	p := &types.HealthProfile{
		UserID:     row.UserID,
		ProtocolID: row.ProtocolID.String,
		Sex:        row.Sex.String,
		BirthDate:  row.BirthDate.String,
		DietKey:    row.DietKey.String,
	}
	if row.HeightCm.Valid {
		v := row.HeightCm.Float64
		p.HeightCm = &v
	}
	if row.WeightKg.Valid {
		v := row.WeightKg.Float64
		p.WeightKg = &v
	}
	return p, nil
}

// UserOverrides returns the decoded override values of a user.
// A user without overrides yields an empty map.
func (s *Store) UserOverrides(ctx context.Context, userID string) (map[string]any, error) {
	return s.listOverrides(ctx, "list-user-overrides", userID)
}

// ProtocolDefaults returns the decoded override defaults of a protocol.
func (s *Store) ProtocolDefaults(ctx context.Context, protocolID string) (map[string]any, error) {
	return s.listOverrides(ctx, "list-protocol-defaults", protocolID)
}

func (s *Store) listOverrides(ctx context.Context, query, owner string) (map[string]any, error) {
	var rows []overrideRow
	if err := s.q.Select(ctx, query, &rows, owner); err != nil {
		return nil, fmt.Errorf("failed to list overrides for %s: %w", owner, err)
	}

	out := make(map[string]any, len(rows))
	for _, r := range rows {
		var v any
		if err := json.Unmarshal([]byte(r.ValueJSON), &v); err != nil {
			return nil, fmt.Errorf("override %q of %s is not valid JSON: %w", r.Key, owner, err)
		}
		out[r.Key] = v
	}
	return out, nil
}

// SaveProtocol inserts or updates a protocol.
func (s *Store) SaveProtocol(ctx context.Context, p types.Protocol) error {
	if _, err := s.q.Exec(ctx, "upsert-protocol", p.ID, p.Key, p.Version); err != nil {
		return fmt.Errorf("failed to save protocol %s: %w", p.ID, err)
	}
	return nil
}

// SaveRules inserts or updates rules in one transaction. A null expression
// is stored as SQL NULL.
func (s *Store) SaveRules(ctx context.Context, rules []types.SupplementRule) error {
	return s.q.InTx(ctx, func(tx *Tx) error {
		for _, r := range rules {
			var when sql.NullString
			if !r.WhenJSON.IsNull() {
				when = sql.NullString{String: string(r.WhenJSON), Valid: true}
			}
			if _, err := tx.Exec(ctx, "upsert-rule",
				string(r.ID), r.ProtocolID, r.SupplementKey, r.RuleKey,
				r.Kind, r.Severity, when, r.MessageNl, r.IsActive,
			); err != nil {
				return fmt.Errorf("failed to save rule %s: %w", r.RuleKey, err)
			}
		}
		return nil
	})
}

// SaveProfile inserts or updates a health profile.
func (s *Store) SaveProfile(ctx context.Context, p types.HealthProfile) error {
	_, err := s.q.Exec(ctx, "upsert-user-profile",
		p.UserID,
		nullString(p.ProtocolID),
		nullString(p.Sex),
		nullString(p.BirthDate),
		nullFloat(p.HeightCm),
		nullFloat(p.WeightKg),
		nullString(p.DietKey),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile %s: %w", p.UserID, err)
	}
	return nil
}

// SetUserOverride stores one user override value as JSON.
func (s *Store) SetUserOverride(ctx context.Context, userID, key string, value any) error {
	return s.setOverride(ctx, "upsert-user-override", userID, key, value)
}

// DeleteUserOverride removes one user override. Removing a missing key is not an error.
func (s *Store) DeleteUserOverride(ctx context.Context, userID, key string) error {
	if _, err := s.q.Exec(ctx, "delete-user-override", userID, key); err != nil {
		return fmt.Errorf("failed to delete override %q of %s: %w", key, userID, err)
	}
	return nil
}

// SetProtocolDefault stores one protocol-level override default as JSON.
func (s *Store) SetProtocolDefault(ctx context.Context, protocolID, key string, value any) error {
	return s.setOverride(ctx, "upsert-protocol-default", protocolID, key, value)
}

func (s *Store) setOverride(ctx context.Context, query, owner, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("override %q of %s cannot be encoded: %w", key, owner, err)
	}
	if _, err := s.q.Exec(ctx, query, owner, key, string(encoded)); err != nil {
		return fmt.Errorf("failed to save override %q of %s: %w", key, owner, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
