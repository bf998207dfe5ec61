// Package service implements the chat turn pipeline and the administrative
// operations on top of the repositories and the connection registry.
package service

import (
	"context"
	"time"

	"persona-server/internal/models"
	"persona-server/internal/registry"
)

// ConnectionResolver finds the backend serving a model or a tool role.
type ConnectionResolver interface {
	ResolveForModel(ctx context.Context, model string) (*registry.Resolved, error)
	ResolveForTool(ctx context.Context, role models.ToolRole) (*registry.Resolved, error)
}

// BackendInvalidator drops cached backends when their connection changes.
type BackendInvalidator interface {
	Invalidate(connectionID string)
}

// TurnRequest is one user message sent to a character.
type TurnRequest struct {
	UserID      string
	CharacterID string
	Text        string
	// Model overrides the default model from the settings.
	Model string
	// IncludedFields overrides the persona fields sent to the model.
	IncludedFields []models.PersonaField
}

// TurnOutcome is the result of a chat turn.
type TurnOutcome struct {
	UserMessage    *models.ChatMessage   `json:"userMessage"`
	BotMessage     *models.ChatMessage   `json:"botMessage,omitempty"`
	ResponseText   string                `json:"responseText"`
	StatChanges    []models.StatChange   `json:"statChanges"`
	Stats          models.StatsSnapshot  `json:"stats"`
	NarrativeState models.NarrativeState `json:"narrativeState"`
	// Notice replaces the reply when the turn could not be dispatched
	// because of the connection setup.
	Notice      string `json:"notice,omitempty"`
	ConfigError bool   `json:"configError,omitempty"`
	Failed      bool   `json:"failed,omitempty"`
	Model       string `json:"model,omitempty"`
}

// ChatService runs chat turns and manages chat history.
type ChatService interface {
	SendTurn(ctx context.Context, req TurnRequest) (*TurnOutcome, error)
	// StreamTurn is SendTurn reporting the cumulative reply text while it is generated.
	StreamTurn(ctx context.Context, req TurnRequest, onUpdate func(text string)) (*TurnOutcome, error)
	StartChat(ctx context.Context, userID, characterID string) ([]models.ChatMessage, error)
	History(ctx context.Context, userID, characterID string) ([]models.ChatMessage, error)
	Session(ctx context.Context, userID, characterID string) (*models.SessionState, error)
	DeleteMessage(ctx context.Context, userID, characterID, messageID string) error
	ResetChat(ctx context.Context, userID, characterID string) error
}

// ModerationService classifies text against the content policy.
type ModerationService interface {
	// Scan returns nil without error when no verdict could be obtained.
	Scan(ctx context.Context, text string) (*models.ScanResult, error)
	ScanMessage(ctx context.Context, task models.ModerationTask) error
	// Alerts returns at most limit stored alerts, newest first.
	Alerts(ctx context.Context, limit int) ([]models.ModerationAlert, error)
}

// SummaryService condenses persona fields.
type SummaryService interface {
	SummarizeCharacter(ctx context.Context, characterID string) (*models.Character, error)
}

// CharacterService manages characters.
type CharacterService interface {
	List(ctx context.Context) ([]models.Character, error)
	Get(ctx context.Context, id string) (*models.Character, error)
	Create(ctx context.Context, c *models.Character) (*models.Character, error)
	Update(ctx context.Context, id string, c *models.Character) (*models.Character, error)
	Delete(ctx context.Context, id string) error
}

// ConnectionService manages AI connections. Returned connections have masked keys.
type ConnectionService interface {
	List(ctx context.Context) ([]models.Connection, error)
	Create(ctx context.Context, c *models.Connection) (*models.Connection, error)
	Update(ctx context.Context, id string, c *models.Connection) (*models.Connection, error)
	Delete(ctx context.Context, id string) error
}

// SettingsService manages the global chat settings.
type SettingsService interface {
	Get(ctx context.Context) (models.Settings, error)
	Update(ctx context.Context, s models.Settings) (models.Settings, error)
}

// RetryPolicy bounds retries against rate-limited backends.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}
