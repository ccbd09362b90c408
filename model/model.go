package model

import "context"

// Message is a single role-tagged entry of a model request. Roles follow the
// chat convention: "system", "user", "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request captures the normalized model input produced by the context
// manager. Instructions carry the stage system prompt separately from the
// conversational messages so providers can map it to their native field.
type Request struct {
	Instructions string    `json:"instructions,omitempty"`
	Messages     []Message `json:"messages"`
	Temperature  float64   `json:"temperature,omitempty"`
	MaxTokens    int64     `json:"max_tokens,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the completed output of a model call. Raw retains the
// provider-specific response object for diagnostics.
type Response struct {
	Text  string      `json:"text"`
	Raw   any         `json:"-"`
	Usage *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface required to drive generation. Complete
// blocks until the provider returns; cancellation and per-call timeouts are
// carried by ctx.
type Model interface {
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}
