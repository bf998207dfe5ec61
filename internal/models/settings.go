package models

import "slices"

// User is a chat participant.
type User struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"displayName" yaml:"displayName"`
	KidMode     bool   `json:"kidMode" yaml:"kidMode"`
}

// AIContextSettings controls what is sent to the model on each turn.
type AIContextSettings struct {
	IncludedFields    []PersonaField `json:"includedFields" yaml:"includedFields"`
	MaxHistory        int            `json:"maxHistory" yaml:"maxHistory"`
	MaxResponseTokens int            `json:"maxResponseTokens" yaml:"maxResponseTokens"`
	Temperature       float64        `json:"temperature" yaml:"temperature"`
	DefaultModel      string         `json:"defaultModel" yaml:"defaultModel"`
}

// Includes reports whether a persona field is part of the included set.
func (s AIContextSettings) Includes(f PersonaField) bool {
	return slices.Contains(s.IncludedFields, f)
}

// RuleSets holds the two global narrative rule templates.
// Templates may reference {{char}} and {{user}}.
type RuleSets struct {
	Restricted         string `json:"restricted" yaml:"restricted"`
	Unrestricted       string `json:"unrestricted" yaml:"unrestricted"`
	KidModeInstruction string `json:"kidModeInstruction" yaml:"kidModeInstruction"`
}

// ForMode returns the template for a narrative mode.
func (r RuleSets) ForMode(m NarrativeMode) string {
	if m == ModeUnrestricted {
		return r.Unrestricted
	}
	return r.Restricted
}

// Settings groups the global chat configuration.
type Settings struct {
	AI    AIContextSettings `json:"ai" yaml:"ai"`
	Rules RuleSets          `json:"rules" yaml:"rules"`
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	s.AI.IncludedFields = slices.Clone(s.AI.IncludedFields)
	return s
}
