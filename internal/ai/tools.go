package ai

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"persona-server/internal/models"
)

// Function names the model can call during a turn.
const (
	FuncUpdateStats          = "update_stats"
	FuncUpdateNarrativeState = "update_narrative_state"
)

// FunctionCall is a provider-neutral function invocation returned by a model.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// turnTools declares update_stats and update_narrative_state.
func turnTools() []*genai.Tool {
	updateStats := &genai.FunctionDeclaration{
		Name:        FuncUpdateStats,
		Description: "Report changes to the character's stats caused by the latest exchange.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"updates": {
					Type:        genai.TypeArray,
					Description: "One entry per changed stat.",
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"statId":      {Type: genai.TypeString, Description: "The statId shown in the stats block."},
							"valueChange": {Type: genai.TypeNumber, Description: "Signed amount to add to the current value."},
							"reason":      {Type: genai.TypeString, Description: "Short reason for the change."},
						},
						Required: []string{"statId", "valueChange"},
					},
				},
			},
			Required: []string{"updates"},
		},
	}

	// the state is free-form, so it is declared with a raw JSON schema
	updateNarrative := &genai.FunctionDeclaration{
		Name:        FuncUpdateNarrativeState,
		Description: "Replace the whole narrative state with a new JSON object.",
		ParametersJsonSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"newState": map[string]any{
					"type":                 "object",
					"description":          "The complete new narrative state. Keys not included are forgotten.",
					"additionalProperties": true,
				},
			},
			"required": []string{"newState"},
		},
	}

	return []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{updateStats, updateNarrative}}}
}

// ResolveTurn turns model text and function calls into a turn result.
// Stat updates from every update_stats call accumulate in call order; only
// the last update_narrative_state call carrying a newState is kept.
// Malformed arguments are skipped.
func ResolveTurn(text string, calls []FunctionCall) *models.TurnResult {
	res := &models.TurnResult{
		ResponseText: text,
		StatChanges:  []models.StatChange{},
	}
	for _, call := range calls {
		switch call.Name {
		case FuncUpdateStats:
			res.StatChanges = append(res.StatChanges, parseStatUpdates(call.Args)...)
		case FuncUpdateNarrativeState:
			raw, ok := call.Args["newState"]
			if !ok || raw == nil {
				continue
			}
			state, err := models.NewNarrativeState(raw)
			if err != nil {
				continue
			}
			res.NewNarrativeState = state
		}
	}
	return res
}

func parseStatUpdates(args map[string]any) []models.StatChange {
	items, ok := args["updates"].([]any)
	if !ok {
		return nil
	}
	out := make([]models.StatChange, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["statId"].(string)
		if strings.TrimSpace(id) == "" {
			continue
		}
		delta, ok := toFloat(m["valueChange"])
		if !ok {
			continue
		}
		reason, _ := m["reason"].(string)
		out = append(out, models.StatChange{StatID: id, ValueChange: delta, Reason: reason})
	}
	return out
}

func toFloat(v any) (float64, bool) {
	f, ok := rawFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func rawFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
