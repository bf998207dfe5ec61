package ai

import (
	"context"
	"fmt"

	"persona-server/internal/models"
)

// NewBackend builds the backend variant matching the connection's provider kind.
func NewBackend(ctx context.Context, conn models.Connection, opts Options) (Backend, error) {
	switch conn.Provider {
	case models.ProviderGemini:
		return NewGeminiBackend(ctx, conn, opts)
	case models.ProviderOpenAICompatible:
		return NewOpenAIBackend(conn, opts)
	case models.ProviderOllama:
		return NewOllamaBackend(conn, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, conn.Provider)
	}
}
