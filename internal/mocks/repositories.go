package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"persona-server/internal/models"
)

// Mock UserRepository
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}
func (m *UserRepository) UpsertUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// Mock CharacterRepository
type CharacterRepository struct {
	mock.Mock
}

func (m *CharacterRepository) GetCharacter(ctx context.Context, id string) (*models.Character, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Character)
	return c, args.Error(1)
}
func (m *CharacterRepository) ListCharacters(ctx context.Context) ([]models.Character, error) {
	args := m.Called(ctx)
	cs, _ := args.Get(0).([]models.Character)
	return cs, args.Error(1)
}
func (m *CharacterRepository) SaveCharacter(ctx context.Context, character *models.Character) error {
	args := m.Called(ctx, character)
	return args.Error(0)
}
func (m *CharacterRepository) DeleteCharacter(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Mock ChatRepository
type ChatRepository struct {
	mock.Mock
}

func (m *ChatRepository) Append(ctx context.Context, msg *models.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
func (m *ChatRepository) ListRecent(ctx context.Context, userID, characterID string, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, userID, characterID, limit)
	msgs, _ := args.Get(0).([]models.ChatMessage)
	return msgs, args.Error(1)
}
func (m *ChatRepository) List(ctx context.Context, userID, characterID string) ([]models.ChatMessage, error) {
	args := m.Called(ctx, userID, characterID)
	msgs, _ := args.Get(0).([]models.ChatMessage)
	return msgs, args.Error(1)
}
func (m *ChatRepository) Delete(ctx context.Context, userID, characterID, messageID string) error {
	args := m.Called(ctx, userID, characterID, messageID)
	return args.Error(0)
}
func (m *ChatRepository) Clear(ctx context.Context, userID, characterID string) error {
	args := m.Called(ctx, userID, characterID)
	return args.Error(0)
}

// Mock SessionStateRepository
type SessionStateRepository struct {
	mock.Mock
}

func (m *SessionStateRepository) Get(ctx context.Context, userID, characterID string) (*models.SessionState, error) {
	args := m.Called(ctx, userID, characterID)
	s, _ := args.Get(0).(*models.SessionState)
	return s, args.Error(1)
}
func (m *SessionStateRepository) Save(ctx context.Context, session *models.SessionState) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}
func (m *SessionStateRepository) Delete(ctx context.Context, userID, characterID string) error {
	args := m.Called(ctx, userID, characterID)
	return args.Error(0)
}

// Mock ConnectionRepository
type ConnectionRepository struct {
	mock.Mock
}

func (m *ConnectionRepository) ListConnections(ctx context.Context) ([]models.Connection, error) {
	args := m.Called(ctx)
	cs, _ := args.Get(0).([]models.Connection)
	return cs, args.Error(1)
}
func (m *ConnectionRepository) GetConnection(ctx context.Context, id string) (*models.Connection, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Connection)
	return c, args.Error(1)
}
func (m *ConnectionRepository) SaveConnection(ctx context.Context, conn *models.Connection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}
func (m *ConnectionRepository) DeleteConnection(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Mock SettingsRepository
type SettingsRepository struct {
	mock.Mock
}

func (m *SettingsRepository) GetSettings(ctx context.Context) (models.Settings, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(models.Settings)
	return s, args.Error(1)
}
func (m *SettingsRepository) SaveSettings(ctx context.Context, settings models.Settings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

// Mock ModerationAlertRepository
type ModerationAlertRepository struct {
	mock.Mock
}

func (m *ModerationAlertRepository) SaveAlert(ctx context.Context, alert *models.ModerationAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}
func (m *ModerationAlertRepository) ListAlerts(ctx context.Context, limit int) ([]models.ModerationAlert, error) {
	args := m.Called(ctx, limit)
	as, _ := args.Get(0).([]models.ModerationAlert)
	return as, args.Error(1)
}
