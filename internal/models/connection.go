package models

import "slices"

// ProviderKind is the wire protocol family of a connection.
type ProviderKind string

const (
	ProviderGemini           ProviderKind = "gemini"
	ProviderOpenAICompatible ProviderKind = "openai_compatible"
	ProviderOllama           ProviderKind = "ollama"
)

// Valid reports whether the kind is supported.
func (k ProviderKind) Valid() bool {
	switch k {
	case ProviderGemini, ProviderOpenAICompatible, ProviderOllama:
		return true
	}
	return false
}

// ToolRole names an auxiliary job a connection can be routed to.
type ToolRole string

const (
	ToolTextModeration ToolRole = "text_moderation"
	ToolSummarization  ToolRole = "summarization"
)

// Connection is a configured credential, endpoint and model allowlist for one AI backend.
type Connection struct {
	ID       string       `json:"id" yaml:"id"`
	Name     string       `json:"name" yaml:"name"`
	Provider ProviderKind `json:"provider" yaml:"provider"`
	APIKey   string       `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	BaseURL  string       `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Models   []string     `json:"models" yaml:"models"`
	Tools    []ToolRole   `json:"tools,omitempty" yaml:"tools,omitempty"`
	Active   bool         `json:"active" yaml:"active"`
}

// Serves reports whether the connection allows the given model.
func (c *Connection) Serves(model string) bool {
	return slices.Contains(c.Models, model)
}

// HasTool reports whether the connection is assigned the given tool role.
func (c *Connection) HasTool(role ToolRole) bool {
	return slices.Contains(c.Tools, role)
}

// Masked returns a copy safe to expose over the admin API.
func (c Connection) Masked() Connection {
	c.Models = slices.Clone(c.Models)
	c.Tools = slices.Clone(c.Tools)
	if len(c.APIKey) > 4 {
		c.APIKey = "****" + c.APIKey[len(c.APIKey)-4:]
	} else if c.APIKey != "" {
		c.APIKey = "****"
	}
	return c
}

// Clone returns a deep copy.
func (c Connection) Clone() Connection {
	c.Models = slices.Clone(c.Models)
	c.Tools = slices.Clone(c.Tools)
	return c
}
