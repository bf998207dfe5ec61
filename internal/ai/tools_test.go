package ai_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-server/internal/ai"
	"persona-server/internal/models"
)

func statsCall(updates ...map[string]any) ai.FunctionCall {
	items := make([]any, 0, len(updates))
	for _, u := range updates {
		items = append(items, u)
	}
	return ai.FunctionCall{Name: ai.FuncUpdateStats, Args: map[string]any{"updates": items}}
}

func narrativeCall(state any) ai.FunctionCall {
	args := map[string]any{}
	if state != nil {
		args["newState"] = state
	}
	return ai.FunctionCall{Name: ai.FuncUpdateNarrativeState, Args: args}
}

func TestResolveTurn(t *testing.T) {
	t.Run("text only", func(t *testing.T) {
		res := ai.ResolveTurn("Hello!", nil)
		assert.Equal(t, "Hello!", res.ResponseText)
		assert.NotNil(t, res.StatChanges)
		assert.Empty(t, res.StatChanges)
		assert.Nil(t, res.NewNarrativeState)
	})

	t.Run("stat updates concatenate in call order", func(t *testing.T) {
		res := ai.ResolveTurn("", []ai.FunctionCall{
			statsCall(map[string]any{"statId": "a", "valueChange": float64(5)}),
			statsCall(map[string]any{"statId": "b", "valueChange": float64(-2), "reason": "rude"}),
		})
		assert.Equal(t, []models.StatChange{
			{StatID: "a", ValueChange: 5},
			{StatID: "b", ValueChange: -2, Reason: "rude"},
		}, res.StatChanges)
	})

	t.Run("non-finite changes are dropped", func(t *testing.T) {
		res := ai.ResolveTurn("", []ai.FunctionCall{
			statsCall(
				map[string]any{"statId": "trust", "valueChange": "NaN"},
				map[string]any{"statId": "trust", "valueChange": "Inf"},
				map[string]any{"statId": "trust", "valueChange": "-Infinity"},
				map[string]any{"statId": "trust", "valueChange": math.Inf(1)},
				map[string]any{"statId": "trust", "valueChange": "2"},
			),
		})
		assert.Equal(t, []models.StatChange{{StatID: "trust", ValueChange: 2}}, res.StatChanges)
	})

	t.Run("last narrative call wins", func(t *testing.T) {
		res := ai.ResolveTurn("", []ai.FunctionCall{
			narrativeCall(map[string]any{"mood": "calm"}),
			narrativeCall(map[string]any{"mood": "angry"}),
		})
		require.NotNil(t, res.NewNarrativeState)
		assert.JSONEq(t, `{"mood":"angry"}`, string(res.NewNarrativeState))
	})

	t.Run("narrative call without state is ignored", func(t *testing.T) {
		res := ai.ResolveTurn("", []ai.FunctionCall{
			narrativeCall(map[string]any{"mood": "calm"}),
			narrativeCall(nil),
		})
		assert.JSONEq(t, `{"mood":"calm"}`, string(res.NewNarrativeState))
	})

	t.Run("malformed entries are skipped", func(t *testing.T) {
		res := ai.ResolveTurn("", []ai.FunctionCall{
			statsCall(
				map[string]any{"statId": "", "valueChange": float64(1)},
				map[string]any{"statId": "a"},
				map[string]any{"statId": "b", "valueChange": "nope"},
				map[string]any{"statId": "c", "valueChange": "3.5"},
				map[string]any{"statId": "d", "valueChange": 2},
			),
			{Name: ai.FuncUpdateStats, Args: map[string]any{"updates": "not a list"}},
			{Name: "unknown_function", Args: map[string]any{"x": 1}},
		})
		assert.Equal(t, []models.StatChange{
			{StatID: "c", ValueChange: 3.5},
			{StatID: "d", ValueChange: 2},
		}, res.StatChanges)
		assert.Nil(t, res.NewNarrativeState)
	})
}
