package ai_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ollama/ollama/api"
	openaigo "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"

	"persona-server/internal/ai"
)

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("connection refused"), false},
		{"http status", &ai.HTTPStatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"http 500", &ai.HTTPStatusError{StatusCode: http.StatusInternalServerError, Body: "boom"}, false},
		{"openai api error", fmt.Errorf("%w: %w", ai.ErrAIGenerationFailed, &openaigo.APIError{HTTPStatusCode: 429, Message: "slow"}), true},
		{"openai request error", &openaigo.RequestError{HTTPStatusCode: 429, Err: errors.New("x")}, true},
		{"genai api error", fmt.Errorf("wrapped: %w", genai.APIError{Code: 429}), true},
		{"ollama status error", api.StatusError{StatusCode: 429, ErrorMessage: "busy"}, true},
		{"quota text", errors.New("Quota exceeded for project"), true},
		{"resource exhausted text", errors.New("RESOURCE_EXHAUSTED"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ai.IsRateLimited(tt.err))
		})
	}
}

func TestIsConfigError(t *testing.T) {
	assert.True(t, ai.IsConfigError(fmt.Errorf("x: %w", ai.ErrMissingBaseURL)))
	assert.True(t, ai.IsConfigError(ai.ErrUnsupportedProvider))
	assert.False(t, ai.IsConfigError(ai.ErrAIGenerationFailed))
	assert.False(t, ai.IsConfigError(nil))
}
