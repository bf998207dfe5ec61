package ai

import (
	"google.golang.org/genai"

	"persona-server/internal/models"
)

var safetyCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
}

// safetySettings picks permissive thresholds for unrestricted characters and
// conservative ones otherwise.
func safetySettings(mode models.NarrativeMode) []*genai.SafetySetting {
	threshold := genai.HarmBlockThresholdBlockMediumAndAbove
	if mode == models.ModeUnrestricted {
		threshold = genai.HarmBlockThresholdBlockNone
	}
	out := make([]*genai.SafetySetting, 0, len(safetyCategories))
	for _, c := range safetyCategories {
		out = append(out, &genai.SafetySetting{Category: c, Threshold: threshold})
	}
	return out
}
