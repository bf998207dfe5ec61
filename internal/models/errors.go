package models

import "errors"

// Application-wide standard errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrCharacterNotFound  = errors.New("character not found")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrMessageNotFound    = errors.New("message not found")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrInvalidInput = errors.New("invalid input data")
	ErrBadRequest   = errors.New("bad request")
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrRateLimited is returned once retries against a rate-limited backend are exhausted.
	ErrRateLimited = errors.New("ai backend rate limit exceeded")

	ErrInternalServer = errors.New("internal server error")
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
