package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"persona-server/internal/mocks"
	"persona-server/internal/models"
	"persona-server/internal/repository"
	"persona-server/internal/service"
	"persona-server/internal/state"
)

func memoryRepos(t *testing.T) repository.MemoryRepositories {
	t.Helper()
	return repository.NewMemoryRepositories(state.New(models.Settings{}, zap.NewNop()), zap.NewNop())
}

func TestCharacterService_CreateAndUpdate(t *testing.T) {
	repos := memoryRepos(t)
	svc := service.NewCharacterService(repos.Characters, zap.NewNop())
	ctx := context.Background()

	created, err := svc.Create(ctx, &models.Character{
		Name:        "  Aria ",
		Description: "A bard.",
		Personality: "Warm.",
		Summary:     models.CharacterSummary{Description: "Bard.", Personality: "Kind."},
		Stats:       []models.Stat{{ID: "trust", Name: "Trust", Min: 0, Max: 10}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Aria", created.Name)
	assert.Equal(t, models.ModeRestricted, created.Mode)
	assert.False(t, created.CreatedAt.IsZero())

	update := created.Clone()
	update.Description = "A retired bard."
	updated, err := svc.Update(ctx, created.ID, update)
	require.NoError(t, err)
	assert.Empty(t, updated.Summary.Description, "stale summary is dropped")
	assert.Equal(t, "Kind.", updated.Summary.Personality)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, models.ErrCharacterNotFound)
}

func TestCharacterService_Validation(t *testing.T) {
	svc := service.NewCharacterService(memoryRepos(t).Characters, zap.NewNop())
	tests := []struct {
		name string
		char models.Character
	}{
		{"missing name", models.Character{Name: " "}},
		{"unknown mode", models.Character{Name: "A", Mode: "chaotic"}},
		{"inverted bounds", models.Character{Name: "A", Stats: []models.Stat{{ID: "s", Name: "S", Min: 5, Max: 1}}}},
		{"duplicate stat", models.Character{Name: "A", Stats: []models.Stat{{ID: "s", Name: "S"}, {ID: "s", Name: "T"}}}},
		{"stat without id", models.Character{Name: "A", Stats: []models.Stat{{Name: "S"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), &tt.char)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}

	_, err := svc.Update(context.Background(), "missing", &models.Character{Name: "A"})
	assert.ErrorIs(t, err, models.ErrCharacterNotFound)
}

func TestConnectionService(t *testing.T) {
	repos := memoryRepos(t)
	invalidator := new(mocks.BackendInvalidator)
	svc := service.NewConnectionService(repos.Connections, invalidator, zap.NewNop())
	ctx := context.Background()

	created, err := svc.Create(ctx, &models.Connection{
		Name:     "Local",
		Provider: models.ProviderOpenAICompatible,
		APIKey:   "sk-secret-9876",
		BaseURL:  "http://localhost:8080/v1",
		Models:   []string{"llama", " ", "qwen"},
		Active:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "****9876", created.APIKey)
	assert.Equal(t, []string{"llama", "qwen"}, created.Models)

	invalidator.On("Invalidate", created.ID).Return().Twice()

	update := *created
	update.Active = false
	updated, err := svc.Update(ctx, created.ID, &update)
	require.NoError(t, err)
	assert.False(t, updated.Active)

	stored, err := repos.Connections.GetConnection(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-9876", stored.APIKey, "masked key keeps the stored secret")

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "****9876", list[0].APIKey)

	require.NoError(t, svc.Delete(ctx, created.ID))
	invalidator.AssertExpectations(t)

	_, err = svc.Create(ctx, &models.Connection{Name: "bad", Provider: "carrier-pigeon"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestSettingsService(t *testing.T) {
	repos := memoryRepos(t)
	svc := service.NewSettingsService(repos.Settings, zap.NewNop())
	ctx := context.Background()

	in := models.Settings{
		AI: models.AIContextSettings{
			IncludedFields: []models.PersonaField{models.FieldDescription},
			MaxHistory:     10,
			Temperature:    0.9,
			DefaultModel:   "m",
		},
		Rules: models.RuleSets{Restricted: "Be kind, {{user}}."},
	}
	out, err := svc.Update(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m", got.AI.DefaultModel)

	bad := in
	bad.AI.Temperature = 3
	_, err = svc.Update(ctx, bad)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	bad = in
	bad.AI.IncludedFields = []models.PersonaField{"shoe_size"}
	_, err = svc.Update(ctx, bad)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
