package types

import (
	"github.com/google/uuid"
)

// NewRuleID returns a fresh rule id for rules authored without one.
// UUIDv7 ids sort by creation time, so a fixture imported in one pass keeps
// its file order when listed by id.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}
