package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"persona-server/internal/models"
)

type pgModerationAlertRepository struct {
	db     DBTX
	logger *zap.Logger
}

var _ ModerationAlertRepository = (*pgModerationAlertRepository)(nil)

// NewPgModerationAlertRepository creates a PostgreSQL alert repository.
func NewPgModerationAlertRepository(db DBTX, logger *zap.Logger) ModerationAlertRepository {
	return &pgModerationAlertRepository{
		db:     db,
		logger: logger.Named("PgModerationAlertRepo"),
	}
}

func (r *pgModerationAlertRepository) SaveAlert(ctx context.Context, alert *models.ModerationAlert) error {
	result, err := json.Marshal(alert.Result)
	if err != nil {
		return fmt.Errorf("failed to encode scan result: %w", err)
	}
	query := `INSERT INTO moderation_alerts (id, message_id, user_id, character_id, text, category, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = r.db.Exec(ctx, query,
		alert.ID, alert.MessageID, alert.UserID, alert.CharacterID, alert.Text,
		alert.Result.Category, result, alert.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save moderation alert", zap.String("alert_id", alert.ID), zap.Error(err))
		return fmt.Errorf("failed to save moderation alert: %w", err)
	}
	r.logger.Info("Moderation alert stored",
		zap.String("alert_id", alert.ID),
		zap.String("user_id", alert.UserID),
		zap.String("category", alert.Result.Category),
	)
	return nil
}

func (r *pgModerationAlertRepository) ListAlerts(ctx context.Context, limit int) ([]models.ModerationAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, message_id, user_id, character_id, text, result, created_at
		FROM moderation_alerts ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list moderation alerts", zap.Error(err))
		return nil, fmt.Errorf("failed to list moderation alerts: %w", err)
	}
	alerts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ModerationAlert, error) {
		var a models.ModerationAlert
		var result []byte
		if err := row.Scan(&a.ID, &a.MessageID, &a.UserID, &a.CharacterID, &a.Text, &result, &a.CreatedAt); err != nil {
			return a, err
		}
		if err := json.Unmarshal(result, &a.Result); err != nil {
			return a, fmt.Errorf("alert %s has a malformed result: %w", a.ID, err)
		}
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan moderation alerts: %w", err)
	}
	return alerts, nil
}
