package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"persona-server/internal/models"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 4096

// OpenAIBackend speaks the OpenAI chat completions protocol to any compatible
// endpoint. Streams are read line by line so a single malformed event does
// not abort the reply.
type OpenAIBackend struct {
	client     *openaigo.Client
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

var _ PlainStreamOnly = (*OpenAIBackend)(nil)

// NewOpenAIBackend creates a backend for an openai_compatible connection.
func NewOpenAIBackend(conn models.Connection, opts Options) (*OpenAIBackend, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(conn.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: connection %s", ErrMissingBaseURL, conn.ID)
	}
	httpClient := opts.httpClient()

	oaiCfg := openaigo.DefaultConfig(conn.APIKey)
	oaiCfg.BaseURL = baseURL
	oaiCfg.HTTPClient = httpClient

	return &OpenAIBackend{
		client:     openaigo.NewClientWithConfig(oaiCfg),
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     conn.APIKey,
		logger:     opts.logger().Named("OpenAIBackend"),
	}, nil
}

// Provider implements Backend.
func (o *OpenAIBackend) Provider() models.ProviderKind { return models.ProviderOpenAICompatible }

func (o *OpenAIBackend) buildRequest(req Request, stream bool) openaigo.ChatCompletionRequest {
	history := TrimHistory(req.History, req.MaxHistory)
	messages := make([]openaigo.ChatCompletionMessage, 0, len(history)+1)
	if strings.TrimSpace(req.SystemInstruction) != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}
	for _, m := range history {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    roleFor(m.Sender, openaigo.ChatMessageRoleAssistant),
			Content: m.Text,
		})
	}
	out := openaigo.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  messages,
		Stream:    stream,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}
	return out
}

// Stream posts to {baseUrl}/chat/completions with stream enabled and returns
// the fragments as they arrive.
func (o *OpenAIBackend) Stream(ctx context.Context, req Request) (TextStream, error) {
	provider := string(models.ProviderOpenAICompatible)
	body, err := json.Marshal(o.buildRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode request: %w", ErrAIGenerationFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %w", ErrAIGenerationFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	o.logger.Debug("Sending stream request",
		zap.String("model", req.Model),
		zap.String("user_id", req.UserID),
		zap.Int("system_instruction_bytes", len(req.SystemInstruction)),
	)
	start := time.Now()
	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		o.logger.Error("Stream request failed", zap.String("model", req.Model), zap.Error(err))
		recordFailure(provider, req.Model, statusErrorStreamInit)
		return nil, fmt.Errorf("%w: %w", ErrAIGenerationFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		o.logger.Warn("Stream request rejected",
			zap.String("model", req.Model),
			zap.Int("status", resp.StatusCode),
			zap.String("body", statusErr.Body),
		)
		recordFailure(provider, req.Model, statusErrorStreamInit)
		return nil, fmt.Errorf("%w: %w", ErrAIGenerationFailed, statusErr)
	}

	return newSSEStream(resp.Body, func(text string, usage *openaigo.Usage, skipped int, err error) {
		elapsed := time.Since(start)
		if skipped > 0 {
			o.logger.Warn("Skipped malformed stream events", zap.String("model", req.Model), zap.Int("skipped", skipped))
		}
		if err != nil {
			o.logger.Error("Stream read failed", zap.String("model", req.Model), zap.Duration("elapsed", elapsed), zap.Error(err))
			recordFailure(provider, req.Model, statusErrorStreamRead)
			return
		}
		u := estimateUsage(req, text)
		if usage != nil {
			u = Usage{PromptTokens: usage.PromptTokens, CompletionTokens: usage.CompletionTokens, TotalTokens: usage.TotalTokens}
		}
		recordSuccess(provider, req.Model, elapsed, u)
		o.logger.Info("Stream completed",
			zap.String("model", req.Model),
			zap.String("user_id", req.UserID),
			zap.Duration("elapsed", elapsed),
			zap.Int("response_chars", len(text)),
			zap.Bool("usage_estimated", u.Estimated),
		)
	}), nil
}

// Complete performs a single non-streamed chat completion.
func (o *OpenAIBackend) Complete(ctx context.Context, req Request) (string, Usage, error) {
	provider := string(models.ProviderOpenAICompatible)
	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, o.buildRequest(req, false))
	elapsed := time.Since(start)
	if err != nil {
		o.logger.Error("Completion request failed", zap.String("model", req.Model), zap.Duration("elapsed", elapsed), zap.Error(err))
		recordFailure(provider, req.Model, statusError)
		return "", Usage{}, fmt.Errorf("%w: %w", ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		recordFailure(provider, req.Model, statusErrorEmpty)
		return "", Usage{}, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	text := resp.Choices[0].Message.Content
	u := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if u.TotalTokens == 0 {
		u = estimateUsage(req, text)
	}
	recordSuccess(provider, req.Model, elapsed, u)
	return text, u, nil
}
