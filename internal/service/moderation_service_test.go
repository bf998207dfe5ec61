package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"persona-server/internal/ai"
	"persona-server/internal/mocks"
	"persona-server/internal/models"
	"persona-server/internal/registry"
	"persona-server/internal/service"
)

func newModerationService(resolver *mocks.ConnectionResolver, alerts *mocks.ModerationAlertRepository) service.ModerationService {
	return service.NewModerationService(resolver, alerts, nil, time.Second, zap.NewNop())
}

func moderationBackend(resolver *mocks.ConnectionResolver) *mocks.CompletionBackend {
	backend := new(mocks.CompletionBackend)
	resolver.On("ResolveForTool", mock.Anything, models.ToolTextModeration).
		Return(&registry.Resolved{Connection: models.Connection{ID: "mod"}, Backend: backend, Model: "mod-model"}, nil)
	return backend
}

func TestModerationService_Scan(t *testing.T) {
	resolver := new(mocks.ConnectionResolver)
	backend := moderationBackend(resolver)
	backend.On("Complete", mock.Anything, mock.MatchedBy(func(r ai.Request) bool {
		return r.Model == "mod-model" &&
			strings.Contains(r.SystemInstruction, "harassment") &&
			len(r.History) == 1 && strings.Contains(r.History[0].Text, "you are awful") &&
			r.Temperature != nil && *r.Temperature == 0
	})).Return("```json\n{\"isViolation\":true,\"category\":\"harassment\",\"confidence\":0.92,\"flaggedText\":\"you are awful\"}\n```", nil)

	res, err := newModerationService(resolver, nil).Scan(context.Background(), "you are awful")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsViolation)
	assert.Equal(t, "harassment", res.Category)
	assert.InDelta(t, 0.92, res.Confidence, 1e-9)
}

func TestModerationService_ScanFailsOpen(t *testing.T) {
	t.Run("no connection", func(t *testing.T) {
		resolver := new(mocks.ConnectionResolver)
		resolver.On("ResolveForTool", mock.Anything, models.ToolTextModeration).
			Return(nil, fmt.Errorf("%w for tool", registry.ErrNoConnection))
		res, err := newModerationService(resolver, nil).Scan(context.Background(), "hello")
		assert.NoError(t, err)
		assert.Nil(t, res)
	})

	t.Run("unparseable verdict", func(t *testing.T) {
		resolver := new(mocks.ConnectionResolver)
		moderationBackend(resolver).On("Complete", mock.Anything, mock.Anything).Return("I cannot help with that.", nil)
		res, err := newModerationService(resolver, nil).Scan(context.Background(), "hello")
		assert.NoError(t, err)
		assert.Nil(t, res)
	})
}

func TestModerationService_ScanErrors(t *testing.T) {
	svc := newModerationService(new(mocks.ConnectionResolver), nil)
	_, err := svc.Scan(context.Background(), "  ")
	assert.ErrorIs(t, err, models.ErrEmptyMessage)

	resolver := new(mocks.ConnectionResolver)
	moderationBackend(resolver).On("Complete", mock.Anything, mock.Anything).
		Return("", fmt.Errorf("%w: timeout", ai.ErrAIGenerationFailed))
	_, err = newModerationService(resolver, nil).Scan(context.Background(), "hello")
	assert.ErrorIs(t, err, ai.ErrAIGenerationFailed)
}

func TestModerationService_ScanMessage(t *testing.T) {
	task := models.ModerationTask{TaskID: "t1", MessageID: "m1", UserID: "u1", CharacterID: "c1", Text: "bad words"}

	t.Run("violation stores alert", func(t *testing.T) {
		resolver := new(mocks.ConnectionResolver)
		moderationBackend(resolver).On("Complete", mock.Anything, mock.Anything).
			Return(`Verdict: {"isViolation":true,"category":"harassment","confidence":0.8}`, nil)
		alerts := new(mocks.ModerationAlertRepository)
		alerts.On("SaveAlert", mock.Anything, mock.MatchedBy(func(a *models.ModerationAlert) bool {
			return a.MessageID == "m1" && a.UserID == "u1" && a.Result.Category == "harassment" && a.ID != ""
		})).Return(nil).Once()

		require.NoError(t, newModerationService(resolver, alerts).ScanMessage(context.Background(), task))
		alerts.AssertExpectations(t)
	})

	t.Run("clean message stores nothing", func(t *testing.T) {
		resolver := new(mocks.ConnectionResolver)
		moderationBackend(resolver).On("Complete", mock.Anything, mock.Anything).
			Return(`{"isViolation":false,"category":"none","confidence":0.99}`, nil)
		alerts := new(mocks.ModerationAlertRepository)

		require.NoError(t, newModerationService(resolver, alerts).ScanMessage(context.Background(), task))
		alerts.AssertNotCalled(t, "SaveAlert", mock.Anything, mock.Anything)
	})

	t.Run("empty text is dropped", func(t *testing.T) {
		empty := task
		empty.Text = ""
		assert.NoError(t, newModerationService(new(mocks.ConnectionResolver), nil).ScanMessage(context.Background(), empty))
	})
}

func TestParseScanResult(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    bool
		wantErr bool
	}{
		{"plain", `{"isViolation":true,"category":"violence","confidence":0.5}`, true, false},
		{"fenced", "```json\n{\"isViolation\":false}\n```", false, false},
		{"with prose", `Here you go: {"isViolation":true} Thanks.`, true, false},
		{"no object", "nothing here", false, true},
		{"broken", `{"isViolation":`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := service.ParseScanResult(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.IsViolation)
		})
	}
}

func TestModerationService_Alerts(t *testing.T) {
	alerts := new(mocks.ModerationAlertRepository)
	alerts.On("ListAlerts", mock.Anything, 500).Return([]models.ModerationAlert{{ID: "a1"}}, nil).Once()
	alerts.On("ListAlerts", mock.Anything, 20).Return([]models.ModerationAlert{}, nil).Once()

	svc := newModerationService(new(mocks.ConnectionResolver), alerts)
	out, err := svc.Alerts(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	_, err = svc.Alerts(context.Background(), 20)
	require.NoError(t, err)
	alerts.AssertExpectations(t)
}
