package models

import "time"

// ScanResult is the parsed verdict of a moderation scan.
type ScanResult struct {
	IsViolation bool    `json:"isViolation"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	FlaggedText string  `json:"flaggedText,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
}

// ModerationAlert is stored when a scan reports a violation.
type ModerationAlert struct {
	ID          string     `json:"id"`
	MessageID   string     `json:"messageId"`
	UserID      string     `json:"userId"`
	CharacterID string     `json:"characterId"`
	Text        string     `json:"text"`
	Result      ScanResult `json:"result"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ModerationTask is the queue payload asking a worker to scan one message.
type ModerationTask struct {
	TaskID      string    `json:"task_id"`
	MessageID   string    `json:"message_id"`
	UserID      string    `json:"user_id"`
	CharacterID string    `json:"character_id"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}
