package ai_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"persona-server/internal/ai"
)

func TestTrimHistory(t *testing.T) {
	msgs := history("a", "b", "c", "d")

	assert.Len(t, ai.TrimHistory(msgs, 0), 4)
	assert.Len(t, ai.TrimHistory(msgs, 10), 4)

	got := ai.TrimHistory(msgs, 2)
	assert.Equal(t, "c", got[0].Text)
	assert.Equal(t, "d", got[1].Text)

	assert.Empty(t, ai.TrimHistory(nil, 3))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, ai.EstimateTokens("test-model", ""))
	assert.Equal(t, 1, ai.EstimateTokens("test-model", "hi"))
	assert.Equal(t, 3, ai.EstimateTokens("test-model", "twelve chars"))
}
