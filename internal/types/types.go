// Package types provides domain models shared across the protocol engine.
//
// Zero-dependency design: rules.go, coverage.go and errors.go use only
// encoding/json so the surrounding application can embed them without pulling
// in the engine's infrastructure stack. ID utilities in ids.go import uuid but
// are isolated in their own file.
//
// Separation from storage: rows loaded by internal/core/db are converted into
// these types at the boundary. Nothing in this package knows about SQL.
package types

import (
	"bytes"
	"encoding/json"
)

// RuleID identifies a supplement rule.
// String alias enables type safety while maintaining JSON string serialization.
type RuleID string

// WhenJSON is the raw, untyped applicability expression of a rule.
// json.RawMessage wrapper preserves the original bytes; the DSL schema
// validator in internal/rules decides whether they form a valid expression.
type WhenJSON json.RawMessage

// MarshalJSON implements json.Marshaler.
// Delegates to json.RawMessage to preserve original expression bytes unchanged.
func (w WhenJSON) MarshalJSON() ([]byte, error) {
	if w == nil {
		return []byte("null"), nil
	}
	return json.RawMessage(w).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
// Delegates to json.RawMessage to capture raw bytes without parsing.
func (w *WhenJSON) UnmarshalJSON(data []byte) error {
	return (*json.RawMessage)(w).UnmarshalJSON(data)
}

// IsNull reports whether the expression is absent (nil, empty or JSON null).
// A null expression means the rule applies unconditionally.
func (w WhenJSON) IsNull() bool {
	trimmed := bytes.TrimSpace(w)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Evaluation and estimation limits.
const (
	// MaxMatchedConditions caps the explanation records kept per rule.
	// Explanations are a display/debug aid; six is enough to show why a rule fired.
	MaxMatchedConditions = 6

	// MaxSuggestions caps the suggestions attached to a coverage snapshot.
	MaxSuggestions = 3

	// DeficitThreshold is the fraction of an absolute target below which a
	// day's actual raises a deficit event.
	DeficitThreshold = 0.8
)
