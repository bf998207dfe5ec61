package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"persona-server/internal/models"
)

// ContentGenerator is the subset of *genai.Models used by GeminiBackend.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiBackend talks to the Gemini API with native function calling.
type GeminiBackend struct {
	models ContentGenerator
	logger *zap.Logger
}

var _ StructuredToolCapable = (*GeminiBackend)(nil)

// NewGeminiBackend creates a backend for a gemini connection.
func NewGeminiBackend(ctx context.Context, conn models.Connection, opts Options) (*GeminiBackend, error) {
	cfg := &genai.ClientConfig{
		APIKey:     conn.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.httpClient(),
	}
	if conn.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: conn.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client for connection %s: %w", conn.ID, err)
	}
	return NewGeminiBackendFromGenerator(client.Models, opts.logger()), nil
}

// NewGeminiBackendFromGenerator wraps an existing generator.
func NewGeminiBackendFromGenerator(gen ContentGenerator, logger *zap.Logger) *GeminiBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiBackend{models: gen, logger: logger.Named("GeminiBackend")}
}

// Provider implements Backend.
func (g *GeminiBackend) Provider() models.ProviderKind { return models.ProviderGemini }

// GenerateTurn sends the turn with the stat and narrative functions attached.
func (g *GeminiBackend) GenerateTurn(ctx context.Context, req Request) (*models.TurnResult, Usage, error) {
	cfg := g.baseConfig(req)
	cfg.Tools = turnTools()
	cfg.ToolConfig = &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto},
	}

	text, calls, usage, err := g.generate(ctx, req, cfg)
	if err != nil {
		return nil, usage, err
	}
	for _, c := range calls {
		aiToolCalls.WithLabelValues(req.Model, c.Name).Inc()
	}
	res := ResolveTurn(text, calls)
	g.logger.Debug("Resolved gemini turn",
		zap.String("model", req.Model),
		zap.String("user_id", req.UserID),
		zap.Int("function_calls", len(calls)),
		zap.Int("stat_changes", len(res.StatChanges)),
		zap.Bool("narrative_updated", res.NewNarrativeState != nil),
	)
	return res, usage, nil
}

// Complete returns plain text without tools attached.
func (g *GeminiBackend) Complete(ctx context.Context, req Request) (string, Usage, error) {
	text, _, usage, err := g.generate(ctx, req, g.baseConfig(req))
	return text, usage, err
}

func (g *GeminiBackend) baseConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SafetySettings:  safetySettings(req.Mode),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if strings.TrimSpace(req.SystemInstruction) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	return cfg
}

func geminiContents(history []models.ChatMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		out = append(out, genai.NewContentFromText(m.Text, genai.Role(roleFor(m.Sender, genai.RoleModel))))
	}
	return out
}

func (g *GeminiBackend) generate(ctx context.Context, req Request, cfg *genai.GenerateContentConfig) (string, []FunctionCall, Usage, error) {
	provider := string(models.ProviderGemini)
	contents := geminiContents(TrimHistory(req.History, req.MaxHistory))
	if len(contents) == 0 {
		recordFailure(provider, req.Model, statusError)
		return "", nil, Usage{}, fmt.Errorf("%w: no message to send", ErrAIGenerationFailed)
	}

	start := time.Now()
	g.logger.Debug("Sending gemini request",
		zap.String("model", req.Model),
		zap.String("user_id", req.UserID),
		zap.Int("system_instruction_bytes", len(req.SystemInstruction)),
		zap.Int("contents", len(contents)),
	)
	resp, err := g.models.GenerateContent(ctx, req.Model, contents, cfg)
	elapsed := time.Since(start)
	if err != nil {
		g.logger.Error("Gemini request failed", zap.String("model", req.Model), zap.Duration("elapsed", elapsed), zap.Error(err))
		recordFailure(provider, req.Model, statusError)
		return "", nil, Usage{}, fmt.Errorf("%w: %w", ErrAIGenerationFailed, err)
	}

	text, calls := splitParts(resp)
	if text == "" && len(calls) == 0 {
		reason := "empty response"
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + string(resp.PromptFeedback.BlockReason)
		} else if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			reason = "finish reason " + string(resp.Candidates[0].FinishReason)
		}
		g.logger.Warn("Gemini returned no usable content", zap.String("model", req.Model), zap.String("reason", reason))
		recordFailure(provider, req.Model, statusErrorEmpty)
		return "", nil, Usage{}, fmt.Errorf("%w: %s", ErrAIGenerationFailed, reason)
	}

	usage := geminiUsage(resp)
	if usage.TotalTokens == 0 {
		usage = estimateUsage(req, text)
	}
	recordSuccess(provider, req.Model, elapsed, usage)
	g.logger.Info("Gemini response received",
		zap.String("model", req.Model),
		zap.String("user_id", req.UserID),
		zap.Duration("elapsed", elapsed),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
	)
	return text, calls, usage, nil
}

// splitParts concatenates the visible text of the first candidate and
// collects its function calls in order. Thought parts are dropped.
func splitParts(resp *genai.GenerateContentResponse) (string, []FunctionCall) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	var b strings.Builder
	var calls []FunctionCall
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil {
			continue
		}
		if p.FunctionCall != nil {
			calls = append(calls, FunctionCall{Name: p.FunctionCall.Name, Args: p.FunctionCall.Args})
			continue
		}
		if p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String(), calls
}

func geminiUsage(resp *genai.GenerateContentResponse) Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return Usage{}
	}
	m := resp.UsageMetadata
	return Usage{
		PromptTokens:     int(m.PromptTokenCount),
		CompletionTokens: int(m.CandidatesTokenCount),
		TotalTokens:      int(m.TotalTokenCount),
	}
}

// Options configures backend construction.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: o.Timeout}
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}
