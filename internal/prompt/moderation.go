package prompt

import (
	"strings"

	"persona-server/internal/models"
)

// DefaultModerationCategories are used when no categories are configured.
var DefaultModerationCategories = []string{
	"harassment",
	"hate_speech",
	"sexual_minors",
	"self_harm",
	"violence",
	"illegal_activity",
}

// BuildModerationInstruction renders the fixed detection instruction for a scan.
func BuildModerationInstruction(categories []string) string {
	if len(categories) == 0 {
		categories = DefaultModerationCategories
	}
	var b strings.Builder
	b.WriteString("You are a content moderation classifier for a character chat platform.\n")
	b.WriteString("Decide whether the text below violates the platform policy.\n\n")
	b.WriteString("Categories: ")
	b.WriteString(strings.Join(categories, ", "))
	b.WriteString("\n\n")
	b.WriteString("Respond with a single JSON object and nothing else:\n")
	b.WriteString(`{"isViolation": boolean, "category": string, "confidence": number between 0 and 1, "flaggedText": string, "explanation": string}`)
	b.WriteString("\nUse category \"none\" and isViolation false when nothing is wrong.\n")
	return b.String()
}

// ModerationInput wraps the scanned text so it cannot be mistaken for instructions.
func ModerationInput(text string) string {
	return "Text to review:\n<<<\n" + text + "\n>>>"
}

// BuildSummaryInstruction asks for a condensed version of one persona field.
func BuildSummaryInstruction(characterName string, field models.PersonaField) string {
	var b strings.Builder
	b.WriteString("You condense character descriptions for a roleplay system prompt.\n")
	b.WriteString("Rewrite the ")
	b.WriteString(strings.ToLower(field.Label()))
	b.WriteString(" of the character ")
	b.WriteString(characterName)
	b.WriteString(" in at most three sentences. Keep names, facts and tone. ")
	b.WriteString("Reply with the condensed text only.")
	return b.String()
}
