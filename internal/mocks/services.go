package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"persona-server/internal/models"
	"persona-server/internal/service"
)

// Mock ChatService
type ChatService struct {
	mock.Mock
}

func (m *ChatService) SendTurn(ctx context.Context, req service.TurnRequest) (*service.TurnOutcome, error) {
	args := m.Called(ctx, req)
	out, _ := args.Get(0).(*service.TurnOutcome)
	return out, args.Error(1)
}

// StreamTurn replays the []string given as the third return value through onUpdate.
func (m *ChatService) StreamTurn(ctx context.Context, req service.TurnRequest, onUpdate func(string)) (*service.TurnOutcome, error) {
	args := m.Called(ctx, req, onUpdate)
	if len(args) > 2 && onUpdate != nil {
		updates, _ := args.Get(2).([]string)
		for _, u := range updates {
			onUpdate(u)
		}
	}
	out, _ := args.Get(0).(*service.TurnOutcome)
	return out, args.Error(1)
}
func (m *ChatService) StartChat(ctx context.Context, userID, characterID string) ([]models.ChatMessage, error) {
	args := m.Called(ctx, userID, characterID)
	msgs, _ := args.Get(0).([]models.ChatMessage)
	return msgs, args.Error(1)
}
func (m *ChatService) History(ctx context.Context, userID, characterID string) ([]models.ChatMessage, error) {
	args := m.Called(ctx, userID, characterID)
	msgs, _ := args.Get(0).([]models.ChatMessage)
	return msgs, args.Error(1)
}
func (m *ChatService) Session(ctx context.Context, userID, characterID string) (*models.SessionState, error) {
	args := m.Called(ctx, userID, characterID)
	s, _ := args.Get(0).(*models.SessionState)
	return s, args.Error(1)
}
func (m *ChatService) DeleteMessage(ctx context.Context, userID, characterID, messageID string) error {
	args := m.Called(ctx, userID, characterID, messageID)
	return args.Error(0)
}
func (m *ChatService) ResetChat(ctx context.Context, userID, characterID string) error {
	args := m.Called(ctx, userID, characterID)
	return args.Error(0)
}

// Mock ModerationService
type ModerationService struct {
	mock.Mock
}

func (m *ModerationService) Scan(ctx context.Context, text string) (*models.ScanResult, error) {
	args := m.Called(ctx, text)
	r, _ := args.Get(0).(*models.ScanResult)
	return r, args.Error(1)
}
func (m *ModerationService) ScanMessage(ctx context.Context, task models.ModerationTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}
func (m *ModerationService) Alerts(ctx context.Context, limit int) ([]models.ModerationAlert, error) {
	args := m.Called(ctx, limit)
	as, _ := args.Get(0).([]models.ModerationAlert)
	return as, args.Error(1)
}

// Mock SummaryService
type SummaryService struct {
	mock.Mock
}

func (m *SummaryService) SummarizeCharacter(ctx context.Context, characterID string) (*models.Character, error) {
	args := m.Called(ctx, characterID)
	c, _ := args.Get(0).(*models.Character)
	return c, args.Error(1)
}

// Mock CharacterService
type CharacterService struct {
	mock.Mock
}

func (m *CharacterService) List(ctx context.Context) ([]models.Character, error) {
	args := m.Called(ctx)
	cs, _ := args.Get(0).([]models.Character)
	return cs, args.Error(1)
}
func (m *CharacterService) Get(ctx context.Context, id string) (*models.Character, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Character)
	return c, args.Error(1)
}
func (m *CharacterService) Create(ctx context.Context, c *models.Character) (*models.Character, error) {
	args := m.Called(ctx, c)
	out, _ := args.Get(0).(*models.Character)
	return out, args.Error(1)
}
func (m *CharacterService) Update(ctx context.Context, id string, c *models.Character) (*models.Character, error) {
	args := m.Called(ctx, id, c)
	out, _ := args.Get(0).(*models.Character)
	return out, args.Error(1)
}
func (m *CharacterService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Mock ConnectionService
type ConnectionService struct {
	mock.Mock
}

func (m *ConnectionService) List(ctx context.Context) ([]models.Connection, error) {
	args := m.Called(ctx)
	cs, _ := args.Get(0).([]models.Connection)
	return cs, args.Error(1)
}
func (m *ConnectionService) Create(ctx context.Context, c *models.Connection) (*models.Connection, error) {
	args := m.Called(ctx, c)
	out, _ := args.Get(0).(*models.Connection)
	return out, args.Error(1)
}
func (m *ConnectionService) Update(ctx context.Context, id string, c *models.Connection) (*models.Connection, error) {
	args := m.Called(ctx, id, c)
	out, _ := args.Get(0).(*models.Connection)
	return out, args.Error(1)
}
func (m *ConnectionService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Mock SettingsService
type SettingsService struct {
	mock.Mock
}

func (m *SettingsService) Get(ctx context.Context) (models.Settings, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(models.Settings)
	return s, args.Error(1)
}
func (m *SettingsService) Update(ctx context.Context, s models.Settings) (models.Settings, error) {
	args := m.Called(ctx, s)
	out, _ := args.Get(0).(models.Settings)
	return out, args.Error(1)
}

var (
	_ service.ChatService       = (*ChatService)(nil)
	_ service.ModerationService = (*ModerationService)(nil)
	_ service.SummaryService    = (*SummaryService)(nil)
	_ service.CharacterService  = (*CharacterService)(nil)
	_ service.ConnectionService = (*ConnectionService)(nil)
	_ service.SettingsService   = (*SettingsService)(nil)
)
