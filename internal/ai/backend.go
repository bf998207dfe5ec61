// Package ai dispatches prompts to language model backends.
//
// Backends are capability-tagged: a backend that can return structured tool
// calls implements StructuredToolCapable, one that only streams plain text
// implements PlainStreamOnly. Every backend implements Backend for single-shot
// completions.
package ai

import (
	"context"

	"persona-server/internal/models"
)

// Request is one model invocation.
type Request struct {
	Model             string
	SystemInstruction string
	// History is sent oldest first after trimming to MaxHistory.
	History     []models.ChatMessage
	MaxHistory  int
	MaxTokens   int
	Temperature *float64 // nil leaves the provider default
	Mode        models.NarrativeMode
	UserID      string // for logs only
}

// Usage reports token counts for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool
}

// Backend is implemented by every provider.
type Backend interface {
	// Provider returns the connection kind the backend talks to.
	Provider() models.ProviderKind
	// Complete returns the full text of a single, non-streamed completion.
	Complete(ctx context.Context, req Request) (string, Usage, error)
}

// StructuredToolCapable backends resolve a turn into text, stat changes and
// an optional narrative state through native function calling.
type StructuredToolCapable interface {
	Backend
	GenerateTurn(ctx context.Context, req Request) (*models.TurnResult, Usage, error)
}

// PlainStreamOnly backends stream text fragments and cannot report stat or
// narrative updates.
type PlainStreamOnly interface {
	Backend
	Stream(ctx context.Context, req Request) (TextStream, error)
}

// TextStream is a pull-based sequence of text fragments.
// Recv returns io.EOF after the last fragment. Close releases the underlying
// connection and may be called at any time.
type TextStream interface {
	Recv() (string, error)
	Close() error
}

// Capability describes how a backend resolves chat turns.
type Capability string

const (
	CapabilityStructuredTools Capability = "structured_tools"
	CapabilityPlainStream     Capability = "plain_stream"
	CapabilityCompletionOnly  Capability = "completion_only"
)

// CapabilityOf reports the richest capability b supports.
func CapabilityOf(b Backend) Capability {
	switch b.(type) {
	case StructuredToolCapable:
		return CapabilityStructuredTools
	case PlainStreamOnly:
		return CapabilityPlainStream
	default:
		return CapabilityCompletionOnly
	}
}
