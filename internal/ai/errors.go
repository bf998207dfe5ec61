package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ollama/ollama/api"
	openaigo "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

var (
	// ErrAIGenerationFailed wraps every transport or provider failure.
	ErrAIGenerationFailed = errors.New("ai generation failed")
	// ErrMissingBaseURL means the connection cannot be reached without a base URL.
	ErrMissingBaseURL = errors.New("connection has no base url configured")
	// ErrUnsupportedProvider means no backend exists for the connection kind.
	ErrUnsupportedProvider = errors.New("unsupported provider kind")
)

// HTTPStatusError is returned for non-2xx responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("ai backend returned status %d: %s", e.StatusCode, e.Body)
}

// IsConfigError reports whether err comes from a connection that cannot be
// used as configured.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingBaseURL) || errors.Is(err, ErrUnsupportedProvider)
}

// IsRateLimited reports whether err is a rate-limit or quota rejection from any backend.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if statusCode(err) == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "ratelimit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "too many requests")
}

// statusCode extracts an HTTP status from the error types of every provider SDK.
func statusCode(err error) int {
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	var oaiErr *openaigo.APIError
	if errors.As(err, &oaiErr) {
		return oaiErr.HTTPStatusCode
	}
	var oaiReqErr *openaigo.RequestError
	if errors.As(err, &oaiReqErr) {
		return oaiReqErr.HTTPStatusCode
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code
	}
	var ollamaErr api.StatusError
	if errors.As(err, &ollamaErr) {
		return ollamaErr.StatusCode
	}
	return 0
}
