package fixtures

import (
	"encoding/json"
	"fmt"

	"github.com/solatis/nutriprotocol/internal/types"
)

// RuleTable is a protocol's rule table as loaded from a fixture.
type RuleTable struct {
	Protocol         *types.Protocol
	ProtocolDefaults map[string]any
	Rules            []types.SupplementRule
}

// Active returns the rules with IsActive set, in file order.
func (t *RuleTable) Active() []types.SupplementRule {
	active := make([]types.SupplementRule, 0, len(t.Rules))
	for _, r := range t.Rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active
}

type ruleTableDoc struct {
	Protocol         *types.Protocol `json:"protocol" yaml:"protocol"`
	ProtocolDefaults map[string]any  `json:"protocolDefaults" yaml:"protocolDefaults"`
	Rules            []ruleDoc       `json:"rules" yaml:"rules" validate:"dive"`
}

// ruleDoc accepts the expression either as a structured "when" value or as
// "whenJson", which may also hold the raw JSON text as stored in a database.
type ruleDoc struct {
	ID            string `json:"id" yaml:"id"`
	ProtocolID    string `json:"protocolId" yaml:"protocolId"`
	SupplementKey string `json:"supplementKey" yaml:"supplementKey" validate:"required"`
	RuleKey       string `json:"ruleKey" yaml:"ruleKey" validate:"required"`
	Kind          string `json:"kind" yaml:"kind"`
	Severity      string `json:"severity" yaml:"severity"`
	MessageNl     string `json:"messageNl" yaml:"messageNl"`
	IsActive      *bool  `json:"isActive" yaml:"isActive"`
	When          any    `json:"when" yaml:"when"`
	WhenJSON      any    `json:"whenJson" yaml:"whenJson"`
}

// LoadRules reads a rule table fixture.
//
// Rules without an id receive a UUIDv7, rules without a protocolId inherit
// the table's protocol, and isActive defaults to true. Expressions are not
// validated here: a malformed expression is data the engine must report,
// not a load failure.
func LoadRules(path string) (*RuleTable, error) {
	var doc ruleTableDoc
	if err := decodeFile(path, &doc); err != nil {
		return nil, err
	}
	if err := checkStruct(path, &doc); err != nil {
		return nil, err
	}

	table := &RuleTable{
		Protocol:         doc.Protocol,
		ProtocolDefaults: doc.ProtocolDefaults,
		Rules:            make([]types.SupplementRule, 0, len(doc.Rules)),
	}

	for i, d := range doc.Rules {
		rule, err := d.toRule(table.Protocol)
		if err != nil {
			return nil, fmt.Errorf("invalid fixture %s: rules[%d]: %w", path, i, err)
		}
		table.Rules = append(table.Rules, rule)
	}
	return table, nil
}

func (d ruleDoc) toRule(protocol *types.Protocol) (types.SupplementRule, error) {
	rule := types.SupplementRule{
		ID:            types.RuleID(d.ID),
		ProtocolID:    d.ProtocolID,
		SupplementKey: d.SupplementKey,
		RuleKey:       d.RuleKey,
		Kind:          d.Kind,
		Severity:      d.Severity,
		MessageNl:     d.MessageNl,
		IsActive:      d.IsActive == nil || *d.IsActive,
	}
	if rule.ID == "" {
		rule.ID = types.NewRuleID()
	}
	if rule.ProtocolID == "" && protocol != nil {
		rule.ProtocolID = protocol.ID
	}

	if d.When != nil && d.WhenJSON != nil {
		return rule, fmt.Errorf("rule %s sets both when and whenJson", d.RuleKey)
	}

	when, err := encodeWhen(d.When, d.WhenJSON)
	if err != nil {
		return rule, fmt.Errorf("rule %s: %w", d.RuleKey, err)
	}
	rule.WhenJSON = when
	return rule, nil
}

// encodeWhen turns a decoded expression back into raw JSON bytes. A string
// whenJson is taken verbatim.
func encodeWhen(when, whenJSON any) (types.WhenJSON, error) {
	raw := when
	if raw == nil {
		raw = whenJSON
		if s, ok := whenJSON.(string); ok {
			return types.WhenJSON(s), nil
		}
	}
	if raw == nil {
		return nil, nil
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode expression: %w", err)
	}
	return types.WhenJSON(encoded), nil
}
