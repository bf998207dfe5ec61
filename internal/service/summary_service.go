package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"persona-server/internal/ai"
	"persona-server/internal/models"
	"persona-server/internal/prompt"
	"persona-server/internal/registry"
	"persona-server/internal/repository"
)

const (
	summaryMaxTokens   = 256
	summaryParallelism = 3
)

type summaryServiceImpl struct {
	characters repository.CharacterRepository
	resolver   ConnectionResolver
	retry      RetryPolicy
	timeout    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *zap.Logger
}

var _ SummaryService = (*summaryServiceImpl)(nil)

// NewSummaryService creates the persona field summarizer.
func NewSummaryService(characters repository.CharacterRepository, resolver ConnectionResolver, retry RetryPolicy, timeout time.Duration, logger *zap.Logger) SummaryService {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	return &summaryServiceImpl{
		characters: characters,
		resolver:   resolver,
		retry:      retry,
		timeout:    timeout,
		sleep:      sleepCtx,
		logger:     logger.Named("SummaryService"),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SummarizeCharacter fills the summary of every non-empty persona field that
// has none yet. The greeting is shown verbatim and never summarized.
func (s *summaryServiceImpl) SummarizeCharacter(ctx context.Context, characterID string) (*models.Character, error) {
	char, err := s.characters.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}

	var pending []models.PersonaField
	for _, f := range models.AllPersonaFields {
		if f == models.FieldGreeting {
			continue
		}
		if strings.TrimSpace(char.Field(f)) != "" && char.Summary.Get(f) == "" {
			pending = append(pending, f)
		}
	}
	if len(pending) == 0 {
		return char, nil
	}

	resolved, err := s.resolver.ResolveForTool(ctx, models.ToolSummarization)
	if err != nil {
		return nil, err
	}

	summaries := make([]string, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryParallelism)
	for i, f := range pending {
		g.Go(func() error {
			text, err := s.summarizeField(gctx, resolved, char, f)
			if err != nil {
				return fmt.Errorf("field %s: %w", f, err)
			}
			summaries[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("Character summarization failed", zap.String("character_id", characterID), zap.Error(err))
		return nil, err
	}

	for i, f := range pending {
		char.Summary.Set(f, summaries[i])
	}
	char.UpdatedAt = time.Now().UTC()
	if err := s.characters.SaveCharacter(ctx, char); err != nil {
		return nil, fmt.Errorf("failed to store summaries: %w", err)
	}
	s.logger.Info("Character summarized", zap.String("character_id", characterID), zap.Int("fields", len(pending)))
	return char, nil
}

func (s *summaryServiceImpl) summarizeField(ctx context.Context, resolved *registry.Resolved, char *models.Character, f models.PersonaField) (string, error) {
	req := ai.Request{
		Model:             resolved.Model,
		SystemInstruction: prompt.BuildSummaryInstruction(char.Name, f),
		History:           []models.ChatMessage{{Sender: models.SenderUser, Text: char.Field(f)}},
		MaxTokens:         summaryMaxTokens,
		Mode:              char.Mode,
	}
	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		text, _, err := resolved.Backend.Complete(callCtx, req)
		cancel()
		if err == nil {
			return strings.TrimSpace(text), nil
		}
		if !ai.IsRateLimited(err) {
			return "", err
		}
		if attempt >= s.retry.MaxAttempts {
			return "", fmt.Errorf("%w after %d attempts: %w", models.ErrRateLimited, attempt, err)
		}
		delay := s.retry.BaseDelay * time.Duration(1<<(attempt-1))
		s.logger.Warn("Summarization rate limited, retrying",
			zap.String("character_id", char.ID),
			zap.String("field", string(f)),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)
		if err := s.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}
