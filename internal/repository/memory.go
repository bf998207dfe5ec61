package repository

import (
	"context"

	"go.uber.org/zap"

	"persona-server/internal/models"
	"persona-server/internal/state"
)

// memoryRepository serves every repository interface from the application state.
type memoryRepository struct {
	st     *state.AppState
	logger *zap.Logger
}

var (
	_ UserRepository            = (*memoryRepository)(nil)
	_ CharacterRepository       = (*memoryRepository)(nil)
	_ ChatRepository            = (*memoryChatRepository)(nil)
	_ SessionStateRepository    = (*memorySessionRepository)(nil)
	_ ConnectionRepository      = (*memoryRepository)(nil)
	_ SettingsRepository        = (*memoryRepository)(nil)
	_ ModerationAlertRepository = (*memoryRepository)(nil)
)

// MemoryRepositories groups the in-memory implementations.
type MemoryRepositories struct {
	Users       UserRepository
	Characters  CharacterRepository
	Chat        ChatRepository
	Sessions    SessionStateRepository
	Connections ConnectionRepository
	Settings    SettingsRepository
	Alerts      ModerationAlertRepository
}

// NewMemoryRepositories returns repositories backed by st.
func NewMemoryRepositories(st *state.AppState, logger *zap.Logger) MemoryRepositories {
	r := &memoryRepository{st: st, logger: logger.Named("MemoryRepo")}
	return MemoryRepositories{
		Users:       r,
		Characters:  r,
		Chat:        &memoryChatRepository{st: st},
		Sessions:    &memorySessionRepository{st: st},
		Connections: r,
		Settings:    r,
		Alerts:      r,
	}
}

func (r *memoryRepository) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := r.st.User(id)
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return &u, nil
}

func (r *memoryRepository) UpsertUser(_ context.Context, user *models.User) error {
	return r.st.Dispatch(state.UpsertUser{User: *user})
}

func (r *memoryRepository) GetCharacter(_ context.Context, id string) (*models.Character, error) {
	c, ok := r.st.Character(id)
	if !ok {
		return nil, models.ErrCharacterNotFound
	}
	return c, nil
}

func (r *memoryRepository) ListCharacters(_ context.Context) ([]models.Character, error) {
	return r.st.Characters(), nil
}

func (r *memoryRepository) SaveCharacter(_ context.Context, character *models.Character) error {
	return r.st.Dispatch(state.UpsertCharacter{Character: *character})
}

func (r *memoryRepository) DeleteCharacter(_ context.Context, id string) error {
	return r.st.Dispatch(state.DeleteCharacter{ID: id})
}

type memoryChatRepository struct {
	st *state.AppState
}

func (r *memoryChatRepository) Append(_ context.Context, msg *models.ChatMessage) error {
	return r.st.Dispatch(state.AppendMessage{Message: *msg})
}

func (r *memoryChatRepository) ListRecent(_ context.Context, userID, characterID string, limit int) ([]models.ChatMessage, error) {
	msgs := r.st.Messages(userID, characterID)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (r *memoryChatRepository) List(_ context.Context, userID, characterID string) ([]models.ChatMessage, error) {
	return r.st.Messages(userID, characterID), nil
}

func (r *memoryChatRepository) Delete(_ context.Context, userID, characterID, messageID string) error {
	return r.st.Dispatch(state.DeleteMessage{UserID: userID, CharacterID: characterID, MessageID: messageID})
}

func (r *memoryChatRepository) Clear(_ context.Context, userID, characterID string) error {
	return r.st.Dispatch(state.ClearChat{UserID: userID, CharacterID: characterID})
}

type memorySessionRepository struct {
	st *state.AppState
}

func (r *memorySessionRepository) Get(_ context.Context, userID, characterID string) (*models.SessionState, error) {
	s, ok := r.st.Session(userID, characterID)
	if !ok {
		return nil, models.ErrNotFound
	}
	return &s, nil
}

func (r *memorySessionRepository) Save(_ context.Context, session *models.SessionState) error {
	return r.st.Dispatch(state.SaveSession{Session: *session})
}

func (r *memorySessionRepository) Delete(_ context.Context, userID, characterID string) error {
	return r.st.Dispatch(state.ClearSession{UserID: userID, CharacterID: characterID})
}

func (r *memoryRepository) ListConnections(_ context.Context) ([]models.Connection, error) {
	return r.st.Connections(), nil
}

func (r *memoryRepository) GetConnection(_ context.Context, id string) (*models.Connection, error) {
	c, ok := r.st.Connection(id)
	if !ok {
		return nil, models.ErrConnectionNotFound
	}
	return &c, nil
}

func (r *memoryRepository) SaveConnection(_ context.Context, conn *models.Connection) error {
	return r.st.Dispatch(state.UpsertConnection{Connection: *conn})
}

func (r *memoryRepository) DeleteConnection(_ context.Context, id string) error {
	return r.st.Dispatch(state.DeleteConnection{ID: id})
}

func (r *memoryRepository) GetSettings(_ context.Context) (models.Settings, error) {
	return r.st.Settings(), nil
}

func (r *memoryRepository) SaveSettings(_ context.Context, settings models.Settings) error {
	return r.st.Dispatch(state.UpdateSettings{Settings: settings})
}

func (r *memoryRepository) SaveAlert(_ context.Context, alert *models.ModerationAlert) error {
	r.logger.Info("Moderation alert stored",
		zap.String("alert_id", alert.ID),
		zap.String("user_id", alert.UserID),
		zap.String("category", alert.Result.Category),
	)
	return r.st.Dispatch(state.AddAlert{Alert: *alert})
}

func (r *memoryRepository) ListAlerts(_ context.Context, limit int) ([]models.ModerationAlert, error) {
	alerts := r.st.Alerts()
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts, nil
}
