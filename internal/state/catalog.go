package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"persona-server/internal/models"
)

// SecretSource resolves named secrets referenced by the catalog.
type SecretSource interface {
	Read(name string) (string, error)
}

// Catalog is the YAML document that seeds the state at startup.
type Catalog struct {
	Settings    models.Settings     `yaml:"settings"`
	Users       []models.User       `yaml:"users"`
	Characters  []models.Character  `yaml:"characters"`
	Connections []CatalogConnection `yaml:"connections"`
}

// CatalogConnection is a connection whose key lives in a secret file.
type CatalogConnection struct {
	models.Connection `yaml:",inline"`
	APIKeySecret      string `yaml:"apiKeySecret,omitempty"`
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	for _, f := range c.Settings.AI.IncludedFields {
		if !f.Valid() {
			return fmt.Errorf("%w: unknown persona field %q in settings", models.ErrInvalidInput, f)
		}
	}
	for i := range c.Characters {
		ch := &c.Characters[i]
		if ch.ID == "" || ch.Name == "" {
			return fmt.Errorf("%w: character #%d needs an id and a name", models.ErrInvalidInput, i)
		}
		if ch.Mode == "" {
			ch.Mode = models.ModeRestricted
		}
		if !ch.Mode.Valid() {
			return fmt.Errorf("%w: character %s has unknown mode %q", models.ErrInvalidInput, ch.ID, ch.Mode)
		}
		for _, st := range ch.Stats {
			if st.ID == "" || st.Min > st.Max {
				return fmt.Errorf("%w: character %s has an invalid stat %q", models.ErrInvalidInput, ch.ID, st.ID)
			}
		}
	}
	for i, conn := range c.Connections {
		if conn.ID == "" {
			return fmt.Errorf("%w: connection #%d needs an id", models.ErrInvalidInput, i)
		}
		if !conn.Provider.Valid() {
			return fmt.Errorf("%w: connection %s has unknown provider %q", models.ErrInvalidInput, conn.ID, conn.Provider)
		}
	}
	return nil
}

// WithDefaults fills AI settings the catalog leaves empty.
func (c *Catalog) WithDefaults(d models.AIContextSettings) {
	ai := &c.Settings.AI
	if len(ai.IncludedFields) == 0 {
		ai.IncludedFields = d.IncludedFields
	}
	if ai.MaxHistory == 0 {
		ai.MaxHistory = d.MaxHistory
	}
	if ai.MaxResponseTokens == 0 {
		ai.MaxResponseTokens = d.MaxResponseTokens
	}
	if ai.Temperature == 0 {
		ai.Temperature = d.Temperature
	}
	if ai.DefaultModel == "" {
		ai.DefaultModel = d.DefaultModel
	}
}

// Seed builds a state holding the catalog contents. Connection keys are
// read through secrets.
func (c *Catalog) Seed(secrets SecretSource, logger *zap.Logger) (*AppState, error) {
	st := New(c.Settings, logger)
	now := time.Now().UTC()

	cmds := make([]Command, 0, len(c.Users)+len(c.Characters)+len(c.Connections))
	for _, u := range c.Users {
		cmds = append(cmds, UpsertUser{User: u})
	}
	for _, ch := range c.Characters {
		ch.CreatedAt, ch.UpdatedAt = now, now
		cmds = append(cmds, UpsertCharacter{Character: ch})
	}
	for _, cc := range c.Connections {
		conn := cc.Connection
		if cc.APIKeySecret != "" {
			key, err := secrets.Read(cc.APIKeySecret)
			if err != nil {
				return nil, fmt.Errorf("connection %s: %w", conn.ID, err)
			}
			conn.APIKey = key
		}
		cmds = append(cmds, UpsertConnection{Connection: conn})
	}
	for _, cmd := range cmds {
		if err := st.Dispatch(cmd); err != nil {
			return nil, fmt.Errorf("failed to seed state (%s): %w", commandName(cmd), err)
		}
	}
	return st, nil
}

// LoadCatalog reads the catalog file and seeds a state from it. A missing
// file yields an empty state carrying the defaults.
func LoadCatalog(path string, defaults models.AIContextSettings, secrets SecretSource, logger *zap.Logger) (*AppState, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Catalog file not found, starting with an empty state", zap.String("path", path))
			c := &Catalog{}
			c.WithDefaults(defaults)
			return c.Seed(secrets, logger)
		}
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := ParseCatalog(raw)
	if err != nil {
		return nil, err
	}
	c.WithDefaults(defaults)
	st, err := c.Seed(secrets, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Catalog loaded",
		zap.String("path", path),
		zap.Int("users", len(c.Users)),
		zap.Int("characters", len(c.Characters)),
		zap.Int("connections", len(c.Connections)),
	)
	return st, nil
}
