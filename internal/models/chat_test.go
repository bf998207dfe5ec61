package models_test

import (
	"encoding/json"
	"math"
	"testing"

	"persona-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trustStat() models.Stat {
	return models.Stat{ID: "Trust", Name: "Trust", Min: 0, Max: 100, Initial: 0}
}

func TestStatsSnapshot_Apply(t *testing.T) {
	stats := []models.Stat{trustStat(), {ID: "mood", Name: "Mood", Min: -10, Max: 10, Initial: 5}}

	t.Run("adds to initial value when absent", func(t *testing.T) {
		out := models.StatsSnapshot(nil).Apply(stats, []models.StatChange{{StatID: "Trust", ValueChange: 1}})
		assert.Equal(t, 1.0, out["Trust"])
		_, hasMood := out["mood"]
		assert.False(t, hasMood)
	})

	t.Run("clamps to max and min", func(t *testing.T) {
		snap := models.StatsSnapshot{"Trust": 98, "mood": -9}
		out := snap.Apply(stats, []models.StatChange{
			{StatID: "Trust", ValueChange: 5},
			{StatID: "mood", ValueChange: -4},
		})
		assert.Equal(t, 100.0, out["Trust"])
		assert.Equal(t, -10.0, out["mood"])
		assert.Equal(t, 98.0, snap["Trust"], "receiver must not be modified")
	})

	t.Run("accumulates repeated changes", func(t *testing.T) {
		out := models.StatsSnapshot{"mood": 0}.Apply(stats, []models.StatChange{
			{StatID: "mood", ValueChange: 3},
			{StatID: "mood", ValueChange: 2.5},
		})
		assert.Equal(t, 5.5, out["mood"])
	})

	t.Run("falls back to the display name", func(t *testing.T) {
		out := models.StatsSnapshot{"mood": 0}.Apply(stats, []models.StatChange{{StatID: "MOOD", ValueChange: 2}})
		assert.Equal(t, models.StatsSnapshot{"mood": 2}, out)
	})

	t.Run("keeps the value on non-finite changes", func(t *testing.T) {
		snap := models.StatsSnapshot{"Trust": 10}
		out := snap.Apply(stats, []models.StatChange{{StatID: "Trust", ValueChange: math.NaN()}})
		assert.Equal(t, 10.0, out["Trust"])

		out = out.Apply(stats, []models.StatChange{{StatID: "Trust", ValueChange: 5}})
		assert.Equal(t, 15.0, out["Trust"])

		out = out.Apply(stats, []models.StatChange{{StatID: "Trust", ValueChange: math.Inf(1)}})
		assert.Equal(t, 100.0, out["Trust"], "infinite changes clamp to the bound")

		_, err := json.Marshal(models.SessionState{Stats: out})
		assert.NoError(t, err)
	})

	t.Run("ignores unknown stats", func(t *testing.T) {
		out := models.StatsSnapshot{"Trust": 10}.Apply(stats, []models.StatChange{{StatID: "ghost", ValueChange: 3}})
		assert.Equal(t, models.StatsSnapshot{"Trust": 10}, out)
	})
}

func TestInitialSnapshot(t *testing.T) {
	snap := models.InitialSnapshot([]models.Stat{trustStat(), {ID: "x", Min: 0, Max: 5, Initial: 9}})
	assert.Equal(t, models.StatsSnapshot{"Trust": 0, "x": 5}, snap)
}

func TestNarrativeState(t *testing.T) {
	t.Run("null states", func(t *testing.T) {
		assert.True(t, models.NarrativeState(nil).IsNull())
		assert.True(t, models.NarrativeState("null").IsNull())
		assert.True(t, models.NarrativeState("  ").IsNull())
		assert.Equal(t, "{}", models.NarrativeState(nil).Indent())
	})

	t.Run("indents objects", func(t *testing.T) {
		st := models.NarrativeState(`{"scene":"tavern","items":["key"]}`)
		assert.Equal(t, "{\n  \"scene\": \"tavern\",\n  \"items\": [\n    \"key\"\n  ]\n}", st.Indent())
	})

	t.Run("round trips through json", func(t *testing.T) {
		res := models.TurnResult{ResponseText: "hi", NewNarrativeState: models.NarrativeState(`{"a":1}`)}
		b, err := json.Marshal(res)
		require.NoError(t, err)
		assert.JSONEq(t, `{"responseText":"hi","statChanges":null,"newNarrativeState":{"a":1}}`, string(b))

		var back models.TurnResult
		require.NoError(t, json.Unmarshal(b, &back))
		assert.JSONEq(t, `{"a":1}`, string(back.NewNarrativeState))
	})

	t.Run("nil state marshals as null", func(t *testing.T) {
		b, err := json.Marshal(models.TurnResult{ResponseText: "x"})
		require.NoError(t, err)
		assert.Contains(t, string(b), `"newNarrativeState":null`)
	})
}

func TestCharacter_PreferredField(t *testing.T) {
	c := &models.Character{Personality: "long personality", Story: "long story"}
	c.Summary.Set(models.FieldPersonality, "short")

	assert.Equal(t, "short", c.PreferredField(models.FieldPersonality))
	assert.Equal(t, "long story", c.PreferredField(models.FieldStory))
	assert.Equal(t, "", c.PreferredField(models.FieldFeeling))
}

func TestConnection_Masked(t *testing.T) {
	c := models.Connection{APIKey: "sk-1234567890", Models: []string{"m"}}
	m := c.Masked()
	assert.Equal(t, "****7890", m.APIKey)
	assert.Equal(t, "sk-1234567890", c.APIKey)
	assert.Equal(t, "****", models.Connection{APIKey: "abc"}.Masked().APIKey)
}

func TestCharacter_FindStat(t *testing.T) {
	c := &models.Character{Stats: []models.Stat{trustStat(), {ID: "mood", Name: "Mood"}}}

	st, ok := c.FindStat("mood")
	require.True(t, ok)
	assert.Equal(t, "mood", st.ID)

	st, ok = c.FindStat("MOOD")
	require.True(t, ok)
	assert.Equal(t, "mood", st.ID)

	_, ok = c.FindStat("ghost")
	assert.False(t, ok)
}
