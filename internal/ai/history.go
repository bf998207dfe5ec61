package ai

import "persona-server/internal/models"

// TrimHistory returns the last n messages, oldest first. n <= 0 keeps everything.
func TrimHistory(history []models.ChatMessage, n int) []models.ChatMessage {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// roleFor maps a sender to the role vocabulary of a backend.
func roleFor(sender models.Sender, botRole string) string {
	if sender == models.SenderBot {
		return botRole
	}
	return "user"
}
