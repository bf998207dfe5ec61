// Package repository defines storage interfaces and their in-memory,
// PostgreSQL and Redis implementations.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"persona-server/internal/models"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// UserRepository stores chat participants.
type UserRepository interface {
	// GetUser returns models.ErrUserNotFound for an unknown id.
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
}

// CharacterRepository stores characters.
type CharacterRepository interface {
	// GetCharacter returns models.ErrCharacterNotFound for an unknown id.
	GetCharacter(ctx context.Context, id string) (*models.Character, error)
	ListCharacters(ctx context.Context) ([]models.Character, error)
	SaveCharacter(ctx context.Context, character *models.Character) error
	DeleteCharacter(ctx context.Context, id string) error
}

// ChatRepository stores the messages of (user, character) chats.
type ChatRepository interface {
	Append(ctx context.Context, msg *models.ChatMessage) error
	// ListRecent returns at most limit of the newest messages, oldest first.
	ListRecent(ctx context.Context, userID, characterID string, limit int) ([]models.ChatMessage, error)
	List(ctx context.Context, userID, characterID string) ([]models.ChatMessage, error)
	// Delete returns models.ErrMessageNotFound when nothing was removed.
	Delete(ctx context.Context, userID, characterID, messageID string) error
	Clear(ctx context.Context, userID, characterID string) error
}

// SessionStateRepository stores the stats snapshot and narrative state of a chat.
type SessionStateRepository interface {
	// Get returns models.ErrNotFound when no session was saved yet.
	Get(ctx context.Context, userID, characterID string) (*models.SessionState, error)
	Save(ctx context.Context, session *models.SessionState) error
	Delete(ctx context.Context, userID, characterID string) error
}

// ConnectionRepository stores AI connections in resolution order.
type ConnectionRepository interface {
	ListConnections(ctx context.Context) ([]models.Connection, error)
	// GetConnection returns models.ErrConnectionNotFound for an unknown id.
	GetConnection(ctx context.Context, id string) (*models.Connection, error)
	SaveConnection(ctx context.Context, conn *models.Connection) error
	DeleteConnection(ctx context.Context, id string) error
}

// SettingsRepository stores the global chat settings.
type SettingsRepository interface {
	GetSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, settings models.Settings) error
}

// ModerationAlertRepository stores moderation alerts.
type ModerationAlertRepository interface {
	SaveAlert(ctx context.Context, alert *models.ModerationAlert) error
	// ListAlerts returns at most limit alerts, newest first.
	ListAlerts(ctx context.Context, limit int) ([]models.ModerationAlert, error)
}
