// Package llm defines the oracle contract the session consumes and the
// provider backends that satisfy it. Providers are interchangeable behind
// this interface.
package llm

import "context"

// Role constants for Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single turn in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to a provider's Complete() call.
type CompletionRequest struct {
	Messages     []Message
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	Model        string // override provider default if set
}

// CompletionResponse is returned by Complete().
type CompletionResponse struct {
	Text         string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Provider is a language model backend.
type Provider interface {
	// Complete sends a completion request and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name identifies the backend in logs and metrics.
	Name() string

	// ModelID returns the current model identifier string.
	ModelID() string
}

// Oracle is the single request/response contract used by every stage.
// Generate returns errors.ErrNoResponse when the backend produced no text.
type Oracle interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
}
