package handler

import (
	"persona-server/internal/models"
	"persona-server/internal/service"
)

type sendMessageRequest struct {
	Text           string                `json:"text" binding:"required"`
	Model          string                `json:"model,omitempty"`
	IncludedFields []models.PersonaField `json:"includedFields,omitempty"`
}

func (r sendMessageRequest) toTurn(userID, characterID string) service.TurnRequest {
	return service.TurnRequest{
		UserID:         userID,
		CharacterID:    characterID,
		Text:           r.Text,
		Model:          r.Model,
		IncludedFields: r.IncludedFields,
	}
}

type scanRequest struct {
	Text string `json:"text" binding:"required"`
}

// scanResponse reports Scanned=false when no verdict could be obtained.
type scanResponse struct {
	Scanned bool               `json:"scanned"`
	Result  *models.ScanResult `json:"result,omitempty"`
}

type messagesResponse struct {
	Messages []models.ChatMessage `json:"messages"`
}

type deltaEvent struct {
	Text string `json:"text"`
}

type streamErrorEvent struct {
	Error   string               `json:"error"`
	Outcome *service.TurnOutcome `json:"outcome,omitempty"`
}
