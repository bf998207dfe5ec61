package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"persona-server/internal/ai"
	"persona-server/internal/models"
	"persona-server/internal/prompt"
	"persona-server/internal/registry"
	"persona-server/internal/repository"
)

const moderationMaxTokens = 512

type moderationServiceImpl struct {
	resolver   ConnectionResolver
	alerts     repository.ModerationAlertRepository
	categories []string
	timeout    time.Duration
	logger     *zap.Logger
}

var _ ModerationService = (*moderationServiceImpl)(nil)

// NewModerationService creates the moderation scanner. Empty categories use the defaults.
func NewModerationService(resolver ConnectionResolver, alerts repository.ModerationAlertRepository, categories []string, timeout time.Duration, logger *zap.Logger) ModerationService {
	return &moderationServiceImpl{
		resolver:   resolver,
		alerts:     alerts,
		categories: categories,
		timeout:    timeout,
		logger:     logger.Named("ModerationService"),
	}
}

// Scan sends text to the text_moderation connection. Without a connection or
// with an unparseable verdict it returns nil and no error.
func (s *moderationServiceImpl) Scan(ctx context.Context, text string) (*models.ScanResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyMessage
	}
	resolved, err := s.resolver.ResolveForTool(ctx, models.ToolTextModeration)
	if err != nil {
		if registry.IsConfigError(err) {
			s.logger.Warn("Moderation skipped, no connection is assigned the text_moderation tool", zap.Error(err))
			moderationScans.WithLabelValues("skipped").Inc()
			return nil, nil
		}
		return nil, err
	}

	zero := 0.0
	req := ai.Request{
		Model:             resolved.Model,
		SystemInstruction: prompt.BuildModerationInstruction(s.categories),
		History:           []models.ChatMessage{{Sender: models.SenderUser, Text: prompt.ModerationInput(text)}},
		MaxTokens:         moderationMaxTokens,
		Temperature:       &zero,
		Mode:              models.ModeUnrestricted,
	}
	scanCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, _, err := resolved.Backend.Complete(scanCtx, req)
	if err != nil {
		if ai.IsConfigError(err) {
			s.logger.Warn("Moderation skipped, connection misconfigured", zap.String("connection_id", resolved.Connection.ID), zap.Error(err))
			moderationScans.WithLabelValues("skipped").Inc()
			return nil, nil
		}
		return nil, fmt.Errorf("moderation scan failed: %w", err)
	}

	result, err := ParseScanResult(raw)
	if err != nil {
		s.logger.Warn("Discarding unparseable moderation verdict", zap.String("connection_id", resolved.Connection.ID), zap.Error(err))
		moderationScans.WithLabelValues("unparsed").Inc()
		return nil, nil
	}
	verdict := "clean"
	if result.IsViolation {
		verdict = "violation"
	}
	moderationScans.WithLabelValues(verdict).Inc()
	return result, nil
}

// ScanMessage scans a queued chat message and stores an alert for violations.
func (s *moderationServiceImpl) ScanMessage(ctx context.Context, task models.ModerationTask) error {
	result, err := s.Scan(ctx, task.Text)
	if err != nil {
		if errors.Is(err, models.ErrEmptyMessage) {
			return nil
		}
		return err
	}
	if result == nil || !result.IsViolation {
		return nil
	}
	alert := &models.ModerationAlert{
		ID:          uuid.NewString(),
		MessageID:   task.MessageID,
		UserID:      task.UserID,
		CharacterID: task.CharacterID,
		Text:        task.Text,
		Result:      *result,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.alerts.SaveAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to store moderation alert: %w", err)
	}
	s.logger.Info("Moderation violation recorded",
		zap.String("message_id", task.MessageID),
		zap.String("user_id", task.UserID),
		zap.String("category", result.Category),
		zap.Float64("confidence", result.Confidence),
	)
	return nil
}

const maxAlertPage = 500

func (s *moderationServiceImpl) Alerts(ctx context.Context, limit int) ([]models.ModerationAlert, error) {
	if limit <= 0 || limit > maxAlertPage {
		limit = maxAlertPage
	}
	return s.alerts.ListAlerts(ctx, limit)
}

// ParseScanResult extracts the JSON verdict from a model reply, tolerating
// code fences and surrounding prose.
func ParseScanResult(raw string) (*models.ScanResult, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in moderation reply")
	}
	var out models.ScanResult
	if err := json.Unmarshal([]byte(s[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("invalid moderation JSON: %w", err)
	}
	return &out, nil
}
