package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"persona-server/internal/models"
	"persona-server/internal/repository"
)

// maxTemperature is the upper bound accepted by every supported provider.
const maxTemperature = 2.0

type characterServiceImpl struct {
	repo   repository.CharacterRepository
	logger *zap.Logger
}

var _ CharacterService = (*characterServiceImpl)(nil)

// NewCharacterService creates the character admin service.
func NewCharacterService(repo repository.CharacterRepository, logger *zap.Logger) CharacterService {
	return &characterServiceImpl{repo: repo, logger: logger.Named("CharacterService")}
}

func (s *characterServiceImpl) List(ctx context.Context) ([]models.Character, error) {
	return s.repo.ListCharacters(ctx)
}

func (s *characterServiceImpl) Get(ctx context.Context, id string) (*models.Character, error) {
	return s.repo.GetCharacter(ctx, id)
}

func (s *characterServiceImpl) Create(ctx context.Context, c *models.Character) (*models.Character, error) {
	if c == nil {
		return nil, models.ErrBadRequest
	}
	char := c.Clone()
	if char.ID == "" {
		char.ID = uuid.NewString()
	}
	if err := validateCharacter(char); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	char.CreatedAt = now
	char.UpdatedAt = now
	if err := s.repo.SaveCharacter(ctx, char); err != nil {
		return nil, fmt.Errorf("failed to create character: %w", err)
	}
	s.logger.Info("Character created", zap.String("character_id", char.ID), zap.String("name", char.Name))
	return char, nil
}

// Update replaces a character. Summaries of persona fields whose text
// changed are dropped so they get regenerated.
func (s *characterServiceImpl) Update(ctx context.Context, id string, c *models.Character) (*models.Character, error) {
	if c == nil {
		return nil, models.ErrBadRequest
	}
	existing, err := s.repo.GetCharacter(ctx, id)
	if err != nil {
		return nil, err
	}
	char := c.Clone()
	char.ID = id
	if err := validateCharacter(char); err != nil {
		return nil, err
	}
	for _, f := range models.AllPersonaFields {
		if char.Field(f) != existing.Field(f) && char.Summary.Get(f) == existing.Summary.Get(f) {
			char.Summary.Set(f, "")
		}
	}
	char.CreatedAt = existing.CreatedAt
	char.UpdatedAt = time.Now().UTC()
	if err := s.repo.SaveCharacter(ctx, char); err != nil {
		return nil, fmt.Errorf("failed to update character: %w", err)
	}
	s.logger.Info("Character updated", zap.String("character_id", id))
	return char, nil
}

func (s *characterServiceImpl) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteCharacter(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Character deleted", zap.String("character_id", id))
	return nil
}

func validateCharacter(c *models.Character) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", models.ErrInvalidInput)
	}
	if c.Mode == "" {
		c.Mode = models.ModeRestricted
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", models.ErrInvalidInput, c.Mode)
	}
	seen := make(map[string]bool, len(c.Stats))
	for _, st := range c.Stats {
		if st.ID == "" || st.Name == "" {
			return fmt.Errorf("%w: every stat needs an id and a name", models.ErrInvalidInput)
		}
		if seen[st.ID] {
			return fmt.Errorf("%w: duplicate stat id %q", models.ErrInvalidInput, st.ID)
		}
		seen[st.ID] = true
		if st.Min > st.Max {
			return fmt.Errorf("%w: stat %q has min greater than max", models.ErrInvalidInput, st.ID)
		}
	}
	return nil
}

type connectionServiceImpl struct {
	repo        repository.ConnectionRepository
	invalidator BackendInvalidator
	logger      *zap.Logger
}

var _ ConnectionService = (*connectionServiceImpl)(nil)

// NewConnectionService creates the connection admin service. Cached backends
// of changed connections are dropped through invalidator.
func NewConnectionService(repo repository.ConnectionRepository, invalidator BackendInvalidator, logger *zap.Logger) ConnectionService {
	return &connectionServiceImpl{repo: repo, invalidator: invalidator, logger: logger.Named("ConnectionService")}
}

func (s *connectionServiceImpl) List(ctx context.Context) ([]models.Connection, error) {
	conns, err := s.repo.ListConnections(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Connection, len(conns))
	for i, c := range conns {
		out[i] = c.Masked()
	}
	return out, nil
}

func (s *connectionServiceImpl) Create(ctx context.Context, c *models.Connection) (*models.Connection, error) {
	if c == nil {
		return nil, models.ErrBadRequest
	}
	conn := c.Clone()
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	if err := validateConnection(&conn); err != nil {
		return nil, err
	}
	if err := s.repo.SaveConnection(ctx, &conn); err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}
	s.logger.Info("Connection created", zap.String("connection_id", conn.ID), zap.String("provider", string(conn.Provider)))
	masked := conn.Masked()
	return &masked, nil
}

// Update replaces a connection. An empty or masked API key keeps the stored one.
func (s *connectionServiceImpl) Update(ctx context.Context, id string, c *models.Connection) (*models.Connection, error) {
	if c == nil {
		return nil, models.ErrBadRequest
	}
	existing, err := s.repo.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}
	conn := c.Clone()
	conn.ID = id
	if conn.APIKey == "" || strings.HasPrefix(conn.APIKey, "****") {
		conn.APIKey = existing.APIKey
	}
	if err := validateConnection(&conn); err != nil {
		return nil, err
	}
	if err := s.repo.SaveConnection(ctx, &conn); err != nil {
		return nil, fmt.Errorf("failed to update connection: %w", err)
	}
	s.invalidator.Invalidate(id)
	s.logger.Info("Connection updated", zap.String("connection_id", id), zap.Bool("active", conn.Active))
	masked := conn.Masked()
	return &masked, nil
}

func (s *connectionServiceImpl) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteConnection(ctx, id); err != nil {
		return err
	}
	s.invalidator.Invalidate(id)
	s.logger.Info("Connection deleted", zap.String("connection_id", id))
	return nil
}

func validateConnection(c *models.Connection) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = c.ID
	}
	if !c.Provider.Valid() {
		return fmt.Errorf("%w: unknown provider %q", models.ErrInvalidInput, c.Provider)
	}
	kept := c.Models[:0]
	for _, m := range c.Models {
		if m = strings.TrimSpace(m); m != "" {
			kept = append(kept, m)
		}
	}
	c.Models = kept
	return nil
}

type settingsServiceImpl struct {
	repo   repository.SettingsRepository
	logger *zap.Logger
}

var _ SettingsService = (*settingsServiceImpl)(nil)

// NewSettingsService creates the settings admin service.
func NewSettingsService(repo repository.SettingsRepository, logger *zap.Logger) SettingsService {
	return &settingsServiceImpl{repo: repo, logger: logger.Named("SettingsService")}
}

func (s *settingsServiceImpl) Get(ctx context.Context) (models.Settings, error) {
	return s.repo.GetSettings(ctx)
}

func (s *settingsServiceImpl) Update(ctx context.Context, settings models.Settings) (models.Settings, error) {
	ai := settings.AI
	for _, f := range ai.IncludedFields {
		if !f.Valid() {
			return models.Settings{}, fmt.Errorf("%w: unknown persona field %q", models.ErrInvalidInput, f)
		}
	}
	if ai.MaxHistory < 0 || ai.MaxResponseTokens < 0 {
		return models.Settings{}, fmt.Errorf("%w: limits must not be negative", models.ErrInvalidInput)
	}
	if ai.Temperature < 0 || ai.Temperature > maxTemperature {
		return models.Settings{}, fmt.Errorf("%w: temperature must be between 0 and %.0f", models.ErrInvalidInput, maxTemperature)
	}
	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		return models.Settings{}, fmt.Errorf("failed to update settings: %w", err)
	}
	s.logger.Info("Settings updated",
		zap.String("default_model", ai.DefaultModel),
		zap.Int("max_history", ai.MaxHistory),
		zap.Int("included_fields", len(ai.IncludedFields)),
	)
	return settings.Clone(), nil
}
