package ai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-server/internal/ai"
	"persona-server/internal/models"
)

func ollamaServer(t *testing.T, lines ...string) (*httptest.Server, *map[string]any) {
	t.Helper()
	captured := map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestOllamaBackend_Stream(t *testing.T) {
	srv, captured := ollamaServer(t,
		`{"model":"m","message":{"role":"assistant","content":"Hi "},"done":false}`,
		`{"model":"m","message":{"role":"assistant","content":"there"},"done":false}`,
		`{"model":"m","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":8,"eval_count":2}`,
	)

	backend, err := ai.NewOllamaBackend(models.Connection{ID: "l", BaseURL: srv.URL + "/v1"}, ai.Options{})
	require.NoError(t, err)

	temp := 0.5
	stream, err := backend.Stream(context.Background(), ai.Request{
		Model:             "test-model",
		SystemInstruction: "sys",
		History:           history("Hello"),
		MaxTokens:         64,
		Temperature:       &temp,
	})
	require.NoError(t, err)
	defer stream.Close()

	frags, err := readAll(t, stream)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"Hi ", "there"}, frags)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)

	body := *captured
	assert.Equal(t, "test-model", body["model"])
	assert.Equal(t, true, body["stream"])
	opts, ok := body["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.5, opts["temperature"])
	assert.Equal(t, float64(64), opts["num_predict"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOllamaBackend_Complete(t *testing.T) {
	srv, captured := ollamaServer(t,
		`{"model":"m","message":{"role":"assistant","content":"a summary"},"done":true,"prompt_eval_count":3,"eval_count":2}`,
	)

	backend, err := ai.NewOllamaBackend(models.Connection{ID: "l", BaseURL: srv.URL}, ai.Options{})
	require.NoError(t, err)

	text, usage, err := backend.Complete(context.Background(), ai.Request{Model: "test-model", History: history("summarize")})
	require.NoError(t, err)
	assert.Equal(t, "a summary", text)
	assert.Equal(t, 5, usage.TotalTokens)
	assert.Equal(t, false, (*captured)["stream"])
}

func TestOllamaBackend_StreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"server busy"}`)
	}))
	defer srv.Close()

	backend, err := ai.NewOllamaBackend(models.Connection{ID: "l", BaseURL: srv.URL}, ai.Options{})
	require.NoError(t, err)

	stream, err := backend.Stream(context.Background(), ai.Request{Model: "test-model", History: history("Hi")})
	require.NoError(t, err)
	defer stream.Close()

	frags, err := readAll(t, stream)
	assert.Empty(t, frags)
	assert.ErrorIs(t, err, ai.ErrAIGenerationFailed)
	assert.True(t, ai.IsRateLimited(err))
}
