package models

import "time"

// NarrativeMode selects which global rule set drives a character.
type NarrativeMode string

const (
	ModeRestricted   NarrativeMode = "restricted"
	ModeUnrestricted NarrativeMode = "unrestricted"
)

// Valid reports whether the mode is one of the known values.
func (m NarrativeMode) Valid() bool {
	return m == ModeRestricted || m == ModeUnrestricted
}

// PersonaField is the key of one descriptive field of a character.
type PersonaField string

const (
	FieldDescription PersonaField = "description"
	FieldPersonality PersonaField = "personality"
	FieldStory       PersonaField = "story"
	FieldSituation   PersonaField = "situation"
	FieldFeeling     PersonaField = "feeling"
	FieldAppearance  PersonaField = "appearance"
	FieldGreeting    PersonaField = "greeting"
)

// AllPersonaFields lists the persona fields in character sheet order.
var AllPersonaFields = []PersonaField{
	FieldDescription,
	FieldPersonality,
	FieldStory,
	FieldSituation,
	FieldFeeling,
	FieldAppearance,
	FieldGreeting,
}

var personaFieldLabels = map[PersonaField]string{
	FieldDescription: "Description",
	FieldPersonality: "Personality",
	FieldStory:       "Story",
	FieldSituation:   "Situation",
	FieldFeeling:     "Feeling",
	FieldAppearance:  "Appearance",
	FieldGreeting:    "Greeting",
}

// Label returns the human readable label used in the character sheet.
func (f PersonaField) Label() string {
	if l, ok := personaFieldLabels[f]; ok {
		return l
	}
	return string(f)
}

// Valid reports whether f is a known persona field.
func (f PersonaField) Valid() bool {
	_, ok := personaFieldLabels[f]
	return ok
}

// CharacterSummary holds the condensed variant of each persona field.
// An empty value means no summary has been generated for that field.
type CharacterSummary struct {
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Personality string `json:"personality,omitempty" yaml:"personality,omitempty"`
	Story       string `json:"story,omitempty" yaml:"story,omitempty"`
	Situation   string `json:"situation,omitempty" yaml:"situation,omitempty"`
	Feeling     string `json:"feeling,omitempty" yaml:"feeling,omitempty"`
	Appearance  string `json:"appearance,omitempty" yaml:"appearance,omitempty"`
	Greeting    string `json:"greeting,omitempty" yaml:"greeting,omitempty"`
}

// Get returns the summary for a field.
func (s CharacterSummary) Get(f PersonaField) string {
	switch f {
	case FieldDescription:
		return s.Description
	case FieldPersonality:
		return s.Personality
	case FieldStory:
		return s.Story
	case FieldSituation:
		return s.Situation
	case FieldFeeling:
		return s.Feeling
	case FieldAppearance:
		return s.Appearance
	case FieldGreeting:
		return s.Greeting
	}
	return ""
}

// Set stores the summary for a field. Unknown fields are ignored.
func (s *CharacterSummary) Set(f PersonaField, v string) {
	switch f {
	case FieldDescription:
		s.Description = v
	case FieldPersonality:
		s.Personality = v
	case FieldStory:
		s.Story = v
	case FieldSituation:
		s.Situation = v
	case FieldFeeling:
		s.Feeling = v
	case FieldAppearance:
		s.Appearance = v
	case FieldGreeting:
		s.Greeting = v
	}
}

// StatRule is a weighted natural-language rule shown to the model.
// Rules are never enforced by the server.
type StatRule struct {
	Description string  `json:"description" yaml:"description"`
	Value       float64 `json:"value" yaml:"value"`
}

// Stat is a bounded numeric character attribute.
type Stat struct {
	ID            string     `json:"id" yaml:"id"`
	Name          string     `json:"name" yaml:"name"`
	Min           float64    `json:"min" yaml:"min"`
	Max           float64    `json:"max" yaml:"max"`
	Initial       float64    `json:"initial" yaml:"initial"`
	Behavior      string     `json:"behavior,omitempty" yaml:"behavior,omitempty"`
	IncreaseRules []StatRule `json:"increaseRules,omitempty" yaml:"increaseRules,omitempty"`
	DecreaseRules []StatRule `json:"decreaseRules,omitempty" yaml:"decreaseRules,omitempty"`
}

// Clamp bounds v to [Min, Max].
func (s Stat) Clamp(v float64) float64 {
	if v < s.Min {
		return s.Min
	}
	if v > s.Max {
		return s.Max
	}
	return v
}

// Character is an AI persona users can chat with.
type Character struct {
	ID          string           `json:"id" yaml:"id"`
	CreatorID   string           `json:"creatorId" yaml:"creatorId"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Personality string           `json:"personality,omitempty" yaml:"personality,omitempty"`
	Story       string           `json:"story,omitempty" yaml:"story,omitempty"`
	Situation   string           `json:"situation,omitempty" yaml:"situation,omitempty"`
	Feeling     string           `json:"feeling,omitempty" yaml:"feeling,omitempty"`
	Appearance  string           `json:"appearance,omitempty" yaml:"appearance,omitempty"`
	Greeting    string           `json:"greeting,omitempty" yaml:"greeting,omitempty"`
	Summary     CharacterSummary `json:"summary" yaml:"summary,omitempty"`
	Stats       []Stat           `json:"stats,omitempty" yaml:"stats,omitempty"`
	Mode        NarrativeMode    `json:"mode" yaml:"mode"`
	CreatedAt   time.Time        `json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time        `json:"updatedAt" yaml:"-"`
}

// Field returns the full (non-summarized) value of a persona field.
func (c *Character) Field(f PersonaField) string {
	switch f {
	case FieldDescription:
		return c.Description
	case FieldPersonality:
		return c.Personality
	case FieldStory:
		return c.Story
	case FieldSituation:
		return c.Situation
	case FieldFeeling:
		return c.Feeling
	case FieldAppearance:
		return c.Appearance
	case FieldGreeting:
		return c.Greeting
	}
	return ""
}

// PreferredField returns the summary of f when it is non-empty and the full
// value otherwise.
func (c *Character) PreferredField(f PersonaField) string {
	if s := c.Summary.Get(f); s != "" {
		return s
	}
	return c.Field(f)
}

// FindStat resolves a stat reported by a model, by id or display name.
func (c *Character) FindStat(ref string) (Stat, bool) {
	if s := findStat(c.Stats, ref); s != nil {
		return *s, true
	}
	return Stat{}, false
}

// Clone returns a deep copy of the character.
func (c *Character) Clone() *Character {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Stats != nil {
		cp.Stats = make([]Stat, len(c.Stats))
		for i, s := range c.Stats {
			s.IncreaseRules = append([]StatRule(nil), s.IncreaseRules...)
			s.DecreaseRules = append([]StatRule(nil), s.DecreaseRules...)
			cp.Stats[i] = s
		}
	}
	return &cp
}
