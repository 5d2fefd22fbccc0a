package fixtures

import (
	"time"

	"github.com/solatis/nutriprotocol/internal/rules"
	"github.com/solatis/nutriprotocol/internal/types"
)

// ContextFixture describes one user either as a ready UserRuleContext or as
// the profile inputs it is built from. When Context is set the other parts
// are ignored.
type ContextFixture struct {
	Context          *types.UserRuleContext `json:"context" yaml:"context"`
	Profile          *types.HealthProfile   `json:"profile" yaml:"profile"`
	Protocol         *types.Protocol        `json:"protocol" yaml:"protocol"`
	ProtocolDefaults map[string]any         `json:"protocolDefaults" yaml:"protocolDefaults"`
	Overrides        map[string]any         `json:"overrides" yaml:"overrides"`
}

// LoadContext reads a user context fixture.
func LoadContext(path string) (*ContextFixture, error) {
	var f ContextFixture
	if err := decodeFile(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Build returns the evaluation context. fallback supplies the protocol (and
// its defaults) when the fixture names none, typically from the rule table.
func (f *ContextFixture) Build(now time.Time, fallback *RuleTable) types.UserRuleContext {
	if f.Context != nil {
		return *f.Context
	}

	in := rules.ProfileInput{
		Profile:          f.Profile,
		Protocol:         f.Protocol,
		ProtocolDefaults: f.ProtocolDefaults,
		UserOverrides:    f.Overrides,
	}
	if fallback != nil {
		if in.Protocol == nil {
			in.Protocol = fallback.Protocol
		}
		if in.ProtocolDefaults == nil {
			in.ProtocolDefaults = fallback.ProtocolDefaults
		}
	}
	return rules.BuildContext(in, now)
}
