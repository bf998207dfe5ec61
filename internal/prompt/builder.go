// Package prompt assembles the system instructions sent to language models.
// Every builder is pure: identical input always yields identical output.
package prompt

import (
	"math"
	"strconv"
	"strings"

	"persona-server/internal/models"
)

const (
	CharPlaceholder = "{{char}}"
	UserPlaceholder = "{{user}}"

	sheetHeader     = "## Character Sheet"
	statsHeader     = "## Stats (model context only, never show to the user)"
	narrativeHeader = "## Narrative State (for continuity only)"
	directiveHeader = "## Highest Priority Directive"
)

// Input is everything the chat system instruction depends on.
type Input struct {
	Character      *models.Character
	User           models.User
	Rules          models.RuleSets
	Context        models.AIContextSettings
	KidMode        bool
	Stats          models.StatsSnapshot  // nil means every stat is at its initial value
	NarrativeState models.NarrativeState // nil renders as {}
	// IncludedFields overrides Context.IncludedFields when non-nil.
	IncludedFields []models.PersonaField
}

// BuildSystemInstruction renders the system instruction for one chat turn.
func BuildSystemInstruction(in Input) string {
	char := in.Character
	if char == nil {
		char = &models.Character{}
	}

	var b strings.Builder
	if tmpl := strings.TrimSpace(in.Rules.ForMode(char.Mode)); tmpl != "" {
		b.WriteString(tmpl)
		b.WriteString("\n\n")
	}

	writeCharacterSheet(&b, char, includedFields(in))

	if len(char.Stats) > 0 {
		b.WriteString("\n")
		writeStats(&b, char.Stats, in.Stats)
	}

	b.WriteString("\n")
	b.WriteString(narrativeHeader)
	b.WriteString("\nThis is your private memory of the story so far. Replace it with update_narrative_state when something important changes.\n")
	b.WriteString(in.NarrativeState.Indent())
	b.WriteString("\n")

	if in.KidMode {
		if instr := strings.TrimSpace(in.Rules.KidModeInstruction); instr != "" {
			b.WriteString("\n")
			b.WriteString(directiveHeader)
			b.WriteString("\n")
			b.WriteString(instr)
			b.WriteString("\n")
		}
	}

	return SubstitutePlaceholders(b.String(), char.Name, in.User.DisplayName)
}

// SubstitutePlaceholders replaces {{char}} and {{user}} everywhere in s.
func SubstitutePlaceholders(s, charName, userName string) string {
	return strings.NewReplacer(CharPlaceholder, charName, UserPlaceholder, userName).Replace(s)
}

func includedFields(in Input) []models.PersonaField {
	if in.IncludedFields != nil {
		return in.IncludedFields
	}
	return in.Context.IncludedFields
}

func writeCharacterSheet(b *strings.Builder, c *models.Character, included []models.PersonaField) {
	b.WriteString(sheetHeader)
	b.WriteString("\nName: ")
	b.WriteString(c.Name)
	b.WriteString("\n")

	// sheet order is fixed regardless of the order of the included set
	for _, f := range models.AllPersonaFields {
		if !contains(included, f) {
			continue
		}
		v := strings.TrimSpace(c.PreferredField(f))
		if v == "" {
			continue
		}
		b.WriteString(f.Label())
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\n")
	}
}

func writeStats(b *strings.Builder, stats []models.Stat, snap models.StatsSnapshot) {
	b.WriteString(statsHeader)
	b.WriteString("\nReport every change with the update_stats function. Keep values within their bounds.\n")
	for _, s := range stats {
		b.WriteString("- ")
		b.WriteString(s.Name)
		b.WriteString(": ")
		b.WriteString(FormatNumber(snap.Value(s)))
		b.WriteString(" (Min: ")
		b.WriteString(FormatNumber(s.Min))
		b.WriteString(", Max: ")
		b.WriteString(FormatNumber(s.Max))
		b.WriteString(") [statId: ")
		b.WriteString(s.ID)
		b.WriteString("]\n")
		if bh := strings.TrimSpace(s.Behavior); bh != "" {
			b.WriteString("  Behavior: ")
			b.WriteString(bh)
			b.WriteString("\n")
		}
		writeRules(b, "  Increases when:", s.IncreaseRules, "+")
		writeRules(b, "  Decreases when:", s.DecreaseRules, "-")
	}
}

func writeRules(b *strings.Builder, title string, rules []models.StatRule, sign string) {
	if len(rules) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteString("\n")
	for _, r := range rules {
		b.WriteString("    - ")
		b.WriteString(r.Description)
		b.WriteString(" (")
		b.WriteString(sign)
		b.WriteString(FormatNumber(math.Abs(r.Value)))
		b.WriteString(")\n")
	}
}

// FormatNumber renders v in its shortest decimal form, e.g. 0, 2.5, -10.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func contains(fields []models.PersonaField, f models.PersonaField) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}
