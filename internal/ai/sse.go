package ai

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	openaigo "github.com/sashabaranov/go-openai"
)

const (
	sseDataPrefix = "data:"
	sseDone       = "[DONE]"
)

// sseStream reads an OpenAI-style server-sent event stream.
// Lines that are not valid chunks are skipped instead of failing the stream.
type sseStream struct {
	body   io.ReadCloser
	reader *bufio.Reader

	text    strings.Builder
	usage   *openaigo.Usage
	skipped int

	eof       bool
	finished  bool
	finalErr  error
	onFinish  func(text string, usage *openaigo.Usage, skipped int, err error)
	closeOnce sync.Once
}

var _ TextStream = (*sseStream)(nil)

func newSSEStream(body io.ReadCloser, onFinish func(text string, usage *openaigo.Usage, skipped int, err error)) *sseStream {
	return &sseStream{
		body:     body,
		reader:   bufio.NewReader(body),
		onFinish: onFinish,
	}
}

type sseErrorEnvelope struct {
	Error *openaigo.APIError `json:"error"`
}

// Recv returns the next non-empty content fragment or io.EOF.
func (s *sseStream) Recv() (string, error) {
	for {
		if s.finished {
			return "", s.finalErr
		}
		if s.eof {
			return "", s.finish(nil)
		}

		line, err := s.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", s.finish(fmt.Errorf("%w: failed to read stream: %w", ErrAIGenerationFailed, err))
		}
		// an unterminated last line is still parsed
		s.eof = err != nil

		frag, done, perr := s.parseLine(line)
		if perr != nil {
			return "", s.finish(perr)
		}
		if done {
			return "", s.finish(nil)
		}
		if frag != "" {
			return frag, nil
		}
	}
}

// parseLine extracts the content fragment from one SSE line.
func (s *sseStream) parseLine(line string) (frag string, done bool, err error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, sseDataPrefix) {
		// comments, event names, ids and blank separators
		return "", false, nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, sseDataPrefix))
	if payload == sseDone {
		return "", true, nil
	}
	if payload == "" {
		return "", false, nil
	}

	var env sseErrorEnvelope
	if json.Unmarshal([]byte(payload), &env) == nil && env.Error != nil && env.Error.Message != "" {
		return "", false, fmt.Errorf("%w: stream error: %w", ErrAIGenerationFailed, env.Error)
	}

	var chunk openaigo.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		s.skipped++
		return "", false, nil
	}
	if chunk.Usage != nil && chunk.Usage.TotalTokens > 0 {
		s.usage = chunk.Usage
	}
	if len(chunk.Choices) == 0 {
		return "", false, nil
	}
	frag = chunk.Choices[0].Delta.Content
	s.text.WriteString(frag)
	return frag, false, nil
}

// finish records the terminal state once and reports it to onFinish.
// A nil err is stored as io.EOF.
func (s *sseStream) finish(err error) error {
	if err == nil {
		err = io.EOF
	}
	if !s.finished {
		s.finished = true
		s.finalErr = err
		if s.onFinish != nil {
			var cbErr error
			if !errors.Is(err, io.EOF) {
				cbErr = err
			}
			s.onFinish(s.text.String(), s.usage, s.skipped, cbErr)
		}
		_ = s.Close()
	}
	return s.finalErr
}

// Close releases the HTTP body. It is safe to call more than once.
func (s *sseStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}
