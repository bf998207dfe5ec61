package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"persona-server/internal/ai"
	"persona-server/internal/models"
	"persona-server/internal/registry"
)

// Mock ConnectionResolver
type ConnectionResolver struct {
	mock.Mock
}

func (m *ConnectionResolver) ResolveForModel(ctx context.Context, model string) (*registry.Resolved, error) {
	args := m.Called(ctx, model)
	r, _ := args.Get(0).(*registry.Resolved)
	return r, args.Error(1)
}
func (m *ConnectionResolver) ResolveForTool(ctx context.Context, role models.ToolRole) (*registry.Resolved, error) {
	args := m.Called(ctx, role)
	r, _ := args.Get(0).(*registry.Resolved)
	return r, args.Error(1)
}

// Mock BackendInvalidator
type BackendInvalidator struct {
	mock.Mock
}

func (m *BackendInvalidator) Invalidate(connectionID string) {
	m.Called(connectionID)
}

// CompletionBackend only supports single-shot completions.
type CompletionBackend struct {
	mock.Mock
	Kind models.ProviderKind
}

func (m *CompletionBackend) Provider() models.ProviderKind { return m.Kind }

// Complete accepts either a static text or a func(context.Context, ai.Request) (string, error).
func (m *CompletionBackend) Complete(ctx context.Context, req ai.Request) (string, ai.Usage, error) {
	ret := m.Called(ctx, req)
	if rf, ok := ret.Get(0).(func(context.Context, ai.Request) (string, error)); ok {
		text, err := rf(ctx, req)
		return text, ai.Usage{}, err
	}
	return ret.String(0), ai.Usage{}, ret.Error(1)
}

// StructuredBackend resolves turns through function calling.
type StructuredBackend struct {
	CompletionBackend
}

func (m *StructuredBackend) GenerateTurn(ctx context.Context, req ai.Request) (*models.TurnResult, ai.Usage, error) {
	ret := m.Called(ctx, req)
	res, _ := ret.Get(0).(*models.TurnResult)
	return res, ai.Usage{}, ret.Error(1)
}

// StreamBackend streams plain text.
type StreamBackend struct {
	CompletionBackend
}

func (m *StreamBackend) Stream(ctx context.Context, req ai.Request) (ai.TextStream, error) {
	ret := m.Called(ctx, req)
	s, _ := ret.Get(0).(ai.TextStream)
	return s, ret.Error(1)
}

var (
	_ ai.StructuredToolCapable = (*StructuredBackend)(nil)
	_ ai.PlainStreamOnly       = (*StreamBackend)(nil)
)
