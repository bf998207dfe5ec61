package state_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-server/internal/config"
	"persona-server/internal/models"
	"persona-server/internal/state"
)

const catalogYAML = `
settings:
  ai:
    includedFields: [description, personality]
    maxHistory: 12
  rules:
    restricted: "Play {{char}} politely with {{user}}."
    unrestricted: "Play {{char}} freely."
    kidModeInstruction: "Keep it child friendly."
users:
  - id: u1
    displayName: Sam
characters:
  - id: aria
    name: Aria
    description: A curious explorer.
    stats:
      - id: trust
        name: Trust
        min: 0
        max: 100
        initial: 10
connections:
  - id: primary
    name: Gemini
    provider: gemini
    models: [gemini-2.0-flash]
    active: true
    apiKeySecret: gemini_api_key
`

var defaults = models.AIContextSettings{
	IncludedFields:    []models.PersonaField{models.FieldDescription},
	MaxHistory:        20,
	MaxResponseTokens: 1024,
	Temperature:       0.9,
	DefaultModel:      "gemini-2.0-flash",
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))
	secretsDir := filepath.Join(dir, "secrets")
	require.NoError(t, os.Mkdir(secretsDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(secretsDir, "gemini_api_key"), []byte("sk-test-1234\n"), 0o600))

	st, err := state.LoadCatalog(path, defaults, config.SecretReader{Dir: secretsDir}, nil)
	require.NoError(t, err)

	settings := st.Settings()
	assert.Equal(t, 12, settings.AI.MaxHistory)
	assert.Equal(t, 1024, settings.AI.MaxResponseTokens, "defaults fill empty values")
	assert.Equal(t, "gemini-2.0-flash", settings.AI.DefaultModel)
	assert.Equal(t, []models.PersonaField{models.FieldDescription, models.FieldPersonality}, settings.AI.IncludedFields)
	assert.Equal(t, "Keep it child friendly.", settings.Rules.KidModeInstruction)

	u, ok := st.User("u1")
	require.True(t, ok)
	assert.Equal(t, "Sam", u.DisplayName)

	ch, ok := st.Character("aria")
	require.True(t, ok)
	assert.Equal(t, models.ModeRestricted, ch.Mode)
	require.Len(t, ch.Stats, 1)
	assert.Equal(t, float64(10), ch.Stats[0].Initial)
	assert.False(t, ch.CreatedAt.IsZero())

	conn, ok := st.Connection("primary")
	require.True(t, ok)
	assert.Equal(t, "sk-test-1234", conn.APIKey)
	assert.True(t, conn.Active)
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	st, err := state.LoadCatalog(filepath.Join(t.TempDir(), "none.yaml"), defaults, config.SecretReader{Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, st.Settings().AI.MaxHistory)
	assert.Empty(t, st.Characters())
}

func TestLoadCatalog_MissingSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))

	_, err := state.LoadCatalog(path, defaults, config.SecretReader{Dir: t.TempDir()}, nil)
	assert.ErrorIs(t, err, config.ErrSecretNotFound)
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad provider":  "connections:\n  - id: x\n    provider: pigeon\n",
		"bad mode":      "characters:\n  - id: a\n    name: A\n    mode: chaotic\n",
		"bad stat":      "characters:\n  - id: a\n    name: A\n    stats:\n      - id: s\n        min: 5\n        max: 1\n",
		"unknown field": "settings:\n  ai:\n    includedFields: [hobbies]\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := state.ParseCatalog([]byte(doc))
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}

	_, err := state.ParseCatalog([]byte("users: [unterminated"))
	assert.Error(t, err)
}
