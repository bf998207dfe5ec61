package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"persona-server/internal/models"
)

// Mock ModerationTaskPublisher
type ModerationTaskPublisher struct {
	mock.Mock
}

func (m *ModerationTaskPublisher) PublishModerationTask(ctx context.Context, task models.ModerationTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}
