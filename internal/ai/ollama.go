package ai

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"persona-server/internal/models"
)

// OllamaBackend talks to the native Ollama chat API.
type OllamaBackend struct {
	client *api.Client
	logger *zap.Logger
}

var _ PlainStreamOnly = (*OllamaBackend)(nil)

// NewOllamaBackend creates a backend for an ollama connection.
func NewOllamaBackend(conn models.Connection, opts Options) (*OllamaBackend, error) {
	// the native API lives at the root, not under /v1
	base := strings.TrimSuffix(strings.TrimSpace(conn.BaseURL), "/")
	base = strings.TrimSuffix(base, "/v1")
	if base == "" {
		return nil, fmt.Errorf("%w: connection %s", ErrMissingBaseURL, conn.ID)
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url %q: %w", base, err)
	}
	return &OllamaBackend{
		client: api.NewClient(parsed, opts.httpClient()),
		logger: opts.logger().Named("OllamaBackend"),
	}, nil
}

// Provider implements Backend.
func (o *OllamaBackend) Provider() models.ProviderKind { return models.ProviderOllama }

func (o *OllamaBackend) chatRequest(req Request, stream bool) *api.ChatRequest {
	history := TrimHistory(req.History, req.MaxHistory)
	messages := make([]api.Message, 0, len(history)+1)
	if strings.TrimSpace(req.SystemInstruction) != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.SystemInstruction})
	}
	for _, m := range history {
		messages = append(messages, api.Message{Role: roleFor(m.Sender, "assistant"), Content: m.Text})
	}
	options := map[string]interface{}{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	return &api.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}
}

// Complete performs a non-streamed chat call.
func (o *OllamaBackend) Complete(ctx context.Context, req Request) (string, Usage, error) {
	provider := string(models.ProviderOllama)
	start := time.Now()

	var last api.ChatResponse
	var b strings.Builder
	err := o.client.Chat(ctx, o.chatRequest(req, false), func(r api.ChatResponse) error {
		b.WriteString(r.Message.Content)
		last = r
		return nil
	})
	elapsed := time.Since(start)
	if err != nil {
		o.logger.Error("Ollama request failed", zap.String("model", req.Model), zap.Duration("elapsed", elapsed), zap.Error(err))
		recordFailure(provider, req.Model, statusError)
		return "", Usage{}, fmt.Errorf("%w: %w", ErrAIGenerationFailed, err)
	}
	text := b.String()
	if text == "" {
		recordFailure(provider, req.Model, statusErrorEmpty)
		return "", Usage{}, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}
	u := Usage{
		PromptTokens:     last.PromptEvalCount,
		CompletionTokens: last.EvalCount,
		TotalTokens:      last.PromptEvalCount + last.EvalCount,
	}
	if u.TotalTokens == 0 {
		u = estimateUsage(req, text)
	}
	recordSuccess(provider, req.Model, elapsed, u)
	return text, u, nil
}

// Stream runs the chat call in the background and hands fragments over a channel.
func (o *OllamaBackend) Stream(ctx context.Context, req Request) (TextStream, error) {
	provider := string(models.ProviderOllama)
	streamCtx, cancel := context.WithCancel(ctx)
	s := &chanStream{
		frags:  make(chan string),
		errc:   make(chan error, 1),
		cancel: cancel,
	}

	go func() {
		defer close(s.frags)
		start := time.Now()
		var b strings.Builder
		var usage Usage
		err := o.client.Chat(streamCtx, o.chatRequest(req, true), func(r api.ChatResponse) error {
			if r.Message.Content != "" {
				b.WriteString(r.Message.Content)
				select {
				case s.frags <- r.Message.Content:
				case <-streamCtx.Done():
					return streamCtx.Err()
				}
			}
			if r.Done {
				usage = Usage{
					PromptTokens:     r.PromptEvalCount,
					CompletionTokens: r.EvalCount,
					TotalTokens:      r.PromptEvalCount + r.EvalCount,
				}
				if r.DoneReason != "" && r.DoneReason != "stop" {
					o.logger.Warn("Ollama stream ended early", zap.String("model", req.Model), zap.String("reason", r.DoneReason))
				}
			}
			return nil
		})
		elapsed := time.Since(start)
		if err != nil {
			o.logger.Error("Ollama stream failed", zap.String("model", req.Model), zap.Duration("elapsed", elapsed), zap.Error(err))
			recordFailure(provider, req.Model, statusErrorStreamRead)
			s.errc <- fmt.Errorf("%w: %w", ErrAIGenerationFailed, err)
			return
		}
		if usage.TotalTokens == 0 {
			usage = estimateUsage(req, b.String())
		}
		recordSuccess(provider, req.Model, elapsed, usage)
		s.errc <- nil
	}()
	return s, nil
}

// chanStream adapts a callback-driven producer to TextStream.
type chanStream struct {
	frags  chan string
	errc   chan error
	cancel context.CancelFunc

	mu       sync.Mutex
	finalErr error
}

var _ TextStream = (*chanStream)(nil)

func (s *chanStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalErr != nil {
		return "", s.finalErr
	}
	if frag, ok := <-s.frags; ok {
		return frag, nil
	}
	s.finalErr = io.EOF
	if err := <-s.errc; err != nil {
		s.finalErr = err
	}
	s.cancel()
	return "", s.finalErr
}

// Close cancels the background call. Pending fragments are discarded.
func (s *chanStream) Close() error {
	s.cancel()
	return nil
}

