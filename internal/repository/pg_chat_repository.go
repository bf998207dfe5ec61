package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"persona-server/internal/models"
)

// pgChatRepository stores chat messages in PostgreSQL.
type pgChatRepository struct {
	db     DBTX
	logger *zap.Logger
}

var _ ChatRepository = (*pgChatRepository)(nil)

// NewPgChatRepository creates a PostgreSQL chat repository.
func NewPgChatRepository(db DBTX, logger *zap.Logger) ChatRepository {
	return &pgChatRepository{
		db:     db,
		logger: logger.Named("PgChatRepo"),
	}
}

const chatMessageColumns = `id, user_id, character_id, sender, text, created_at`

func (r *pgChatRepository) Append(ctx context.Context, msg *models.ChatMessage) error {
	query := `INSERT INTO chat_messages (` + chatMessageColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, query, msg.ID, msg.UserID, msg.CharacterID, string(msg.Sender), msg.Text, msg.Timestamp)
	if err != nil {
		r.logger.Error("Failed to append chat message",
			zap.String("message_id", msg.ID),
			zap.String("user_id", msg.UserID),
			zap.String("character_id", msg.CharacterID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

func (r *pgChatRepository) ListRecent(ctx context.Context, userID, characterID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		return r.List(ctx, userID, characterID)
	}
	query := `SELECT ` + chatMessageColumns + ` FROM chat_messages
		WHERE user_id = $1 AND character_id = $2
		ORDER BY seq DESC
		LIMIT $3`
	msgs, err := r.query(ctx, query, userID, characterID, limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func (r *pgChatRepository) List(ctx context.Context, userID, characterID string) ([]models.ChatMessage, error) {
	query := `SELECT ` + chatMessageColumns + ` FROM chat_messages
		WHERE user_id = $1 AND character_id = $2
		ORDER BY seq ASC`
	return r.query(ctx, query, userID, characterID)
}

func (r *pgChatRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.ChatMessage, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query chat messages", zap.Error(err))
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ChatMessage, error) {
		var m models.ChatMessage
		var sender string
		if err := row.Scan(&m.ID, &m.UserID, &m.CharacterID, &sender, &m.Text, &m.Timestamp); err != nil {
			return m, err
		}
		m.Sender = models.Sender(sender)
		return m, nil
	})
	if err != nil {
		r.logger.Error("Failed to scan chat messages", zap.Error(err))
		return nil, fmt.Errorf("failed to scan chat messages: %w", err)
	}
	return msgs, nil
}

func (r *pgChatRepository) Delete(ctx context.Context, userID, characterID, messageID string) error {
	query := `DELETE FROM chat_messages WHERE id = $1 AND user_id = $2 AND character_id = $3`
	tag, err := r.db.Exec(ctx, query, messageID, userID, characterID)
	if err != nil {
		r.logger.Error("Failed to delete chat message", zap.String("message_id", messageID), zap.Error(err))
		return fmt.Errorf("failed to delete chat message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrMessageNotFound
	}
	return nil
}

func (r *pgChatRepository) Clear(ctx context.Context, userID, characterID string) error {
	query := `DELETE FROM chat_messages WHERE user_id = $1 AND character_id = $2`
	tag, err := r.db.Exec(ctx, query, userID, characterID)
	if err != nil {
		r.logger.Error("Failed to clear chat", zap.String("user_id", userID), zap.String("character_id", characterID), zap.Error(err))
		return fmt.Errorf("failed to clear chat: %w", err)
	}
	r.logger.Info("Chat cleared",
		zap.String("user_id", userID),
		zap.String("character_id", characterID),
		zap.Int64("deleted", tag.RowsAffected()),
	)
	return nil
}
