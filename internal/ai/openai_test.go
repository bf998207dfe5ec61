package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"persona-server/internal/ai"
	"persona-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func history(texts ...string) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(texts))
	for i, t := range texts {
		sender := models.SenderUser
		if i%2 == 1 {
			sender = models.SenderBot
		}
		out = append(out, models.ChatMessage{ID: fmt.Sprint(i), Sender: sender, Text: t})
	}
	return out
}

func readAll(t *testing.T, s ai.TextStream) ([]string, error) {
	t.Helper()
	var out []string
	for {
		frag, err := s.Recv()
		if err != nil {
			return out, err
		}
		out = append(out, frag)
	}
}

func TestOpenAIBackend_Stream(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, frag := range []string{"Hel", "lo", " world"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", frag)
		}
		fmt.Fprint(w, "data: {broken\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	backend, err := ai.NewOpenAIBackend(models.Connection{
		ID:       "c1",
		Provider: models.ProviderOpenAICompatible,
		APIKey:   "test-key",
		BaseURL:  srv.URL + "/v1/",
	}, ai.Options{Timeout: 5 * time.Second, Logger: zap.NewNop()})
	require.NoError(t, err)

	stream, err := backend.Stream(context.Background(), ai.Request{
		Model:             "test-model",
		SystemInstruction: "You are Aria.",
		History:           history("old", "older reply", "Hi"),
		MaxHistory:        1,
		MaxTokens:         256,
	})
	require.NoError(t, err)
	defer stream.Close()

	frags, err := readAll(t, stream)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"Hel", "lo", " world"}, frags)

	assert.Equal(t, "test-model", captured["model"])
	assert.Equal(t, true, captured["stream"])
	assert.Equal(t, float64(256), captured["max_tokens"])
	msgs, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "You are Aria.", msgs[0].(map[string]any)["content"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
	assert.Equal(t, "Hi", msgs[1].(map[string]any)["content"])
}

func TestOpenAIBackend_StreamRoles(t *testing.T) {
	var captured struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	backend, err := ai.NewOpenAIBackend(models.Connection{ID: "c1", BaseURL: srv.URL}, ai.Options{})
	require.NoError(t, err)
	stream, err := backend.Stream(context.Background(), ai.Request{Model: "m", History: history("a", "b", "c")})
	require.NoError(t, err)
	_, err = readAll(t, stream)
	assert.ErrorIs(t, err, io.EOF)

	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "assistant", captured.Messages[1].Role)
	assert.Equal(t, "user", captured.Messages[2].Role)
}

func TestOpenAIBackend_StreamNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
	}))
	defer srv.Close()

	backend, err := ai.NewOpenAIBackend(models.Connection{ID: "c1", BaseURL: srv.URL}, ai.Options{})
	require.NoError(t, err)

	_, err = backend.Stream(context.Background(), ai.Request{Model: "m", History: history("Hi")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrAIGenerationFailed)

	var statusErr *ai.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "slow down")
	assert.True(t, ai.IsRateLimited(err))
}

func TestOpenAIBackend_StreamCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	backend, err := ai.NewOpenAIBackend(models.Connection{ID: "c1", BaseURL: srv.URL}, ai.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := backend.Stream(ctx, ai.Request{Model: "m", History: history("Hi")})
	require.NoError(t, err)

	frag, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "first", frag)

	cancel()
	_, err = stream.Recv()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestOpenAIBackend_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, streaming := body["stream"]
		assert.False(t, streaming)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"isViolation\":false}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}}`)
	}))
	defer srv.Close()

	backend, err := ai.NewOpenAIBackend(models.Connection{ID: "c1", BaseURL: srv.URL}, ai.Options{})
	require.NoError(t, err)

	text, usage, err := backend.Complete(context.Background(), ai.Request{Model: "m", SystemInstruction: "classify", History: history("text")})
	require.NoError(t, err)
	assert.Equal(t, `{"isViolation":false}`, text)
	assert.Equal(t, 16, usage.TotalTokens)
	assert.False(t, usage.Estimated)
}

func TestNewOpenAIBackend_MissingBaseURL(t *testing.T) {
	_, err := ai.NewOpenAIBackend(models.Connection{ID: "c1"}, ai.Options{})
	assert.ErrorIs(t, err, ai.ErrMissingBaseURL)
	assert.True(t, ai.IsConfigError(err))
}
