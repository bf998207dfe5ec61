package ai

import (
	"errors"
	"io"
	"strings"
	"testing"

	openaigo "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeTracker struct {
	io.Reader
	closed int
}

func (c *closeTracker) Close() error {
	c.closed++
	return nil
}

func chunk(content string) string {
	return `data: {"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"` + content + `"}}]}` + "\n\n"
}

func drain(t *testing.T, s TextStream) ([]string, error) {
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

func TestSSEStream(t *testing.T) {
	t.Run("yields fragments until DONE", func(t *testing.T) {
		body := &closeTracker{Reader: strings.NewReader(chunk("Hel") + chunk("lo") + chunk(" world") + "data: [DONE]\n\n" + chunk("ignored"))}
		var finalText string
		s := newSSEStream(body, func(text string, _ *openaigo.Usage, _ int, err error) {
			assert.NoError(t, err)
			finalText = text
		})

		frags, err := drain(t, s)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, []string{"Hel", "lo", " world"}, frags)
		assert.Equal(t, "Hello world", finalText)
		assert.Equal(t, 1, body.closed)
	})

	t.Run("skips malformed lines", func(t *testing.T) {
		raw := chunk("A") +
			`data: {"choices":[{"delta":{"content":"trunc` + "\n\n" +
			": keep-alive comment\n" +
			"event: message\n" +
			chunk("B") +
			"data: [DONE]\n"
		var skipped int
		s := newSSEStream(&closeTracker{Reader: strings.NewReader(raw)}, func(_ string, _ *openaigo.Usage, n int, _ error) {
			skipped = n
		})

		frags, err := drain(t, s)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, []string{"A", "B"}, frags)
		assert.Equal(t, 1, skipped)
	})

	t.Run("ends at EOF without sentinel", func(t *testing.T) {
		raw := chunk("x") + strings.TrimSuffix(chunk("y"), "\n\n")
		s := newSSEStream(&closeTracker{Reader: strings.NewReader(raw)}, nil)

		frags, err := drain(t, s)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, []string{"x", "y"}, frags)

		_, err = s.Recv()
		assert.ErrorIs(t, err, io.EOF, "terminal state is sticky")
	})

	t.Run("captures usage block", func(t *testing.T) {
		raw := chunk("x") +
			`data: {"choices":[],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}` + "\n\n" +
			"data: [DONE]\n\n"
		var got *openaigo.Usage
		s := newSSEStream(&closeTracker{Reader: strings.NewReader(raw)}, func(_ string, u *openaigo.Usage, _ int, _ error) {
			got = u
		})
		_, err := drain(t, s)
		assert.ErrorIs(t, err, io.EOF)
		require.NotNil(t, got)
		assert.Equal(t, 10, got.TotalTokens)
	})

	t.Run("error event aborts", func(t *testing.T) {
		raw := chunk("x") + `data: {"error":{"message":"overloaded","type":"server_error"}}` + "\n\n" + chunk("y")
		var cbErr error
		s := newSSEStream(&closeTracker{Reader: strings.NewReader(raw)}, func(_ string, _ *openaigo.Usage, _ int, err error) {
			cbErr = err
		})

		frags, err := drain(t, s)
		assert.Equal(t, []string{"x"}, frags)
		assert.ErrorIs(t, err, ErrAIGenerationFailed)
		assert.Contains(t, err.Error(), "overloaded")
		assert.Equal(t, err, cbErr)
	})

	t.Run("read failure is wrapped", func(t *testing.T) {
		boom := errors.New("connection reset")
		r := io.MultiReader(strings.NewReader(chunk("x")), &failingReader{err: boom})
		s := newSSEStream(&closeTracker{Reader: r}, nil)

		frags, err := drain(t, s)
		assert.Equal(t, []string{"x"}, frags)
		assert.ErrorIs(t, err, ErrAIGenerationFailed)
		assert.ErrorIs(t, err, boom)
	})
}

type failingReader struct{ err error }

func (f *failingReader) Read([]byte) (int, error) { return 0, f.err }
