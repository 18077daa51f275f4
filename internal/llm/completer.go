package llm

import (
	"context"
	"errors"
	"fmt"
)

// Completer defines the interface contract for text-generation services.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	ModelName() string
}

// Role identifies the author of a chat history message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call.
// Preamble is the system instruction; Message is the user turn being answered.
type Request struct {
	Preamble    string
	Message     string
	History     []Message
	Temperature float64
	// MaxTokens of zero leaves the provider default.
	MaxTokens int
}

// ErrEmptyResponse is returned when the provider answers without any text.
var ErrEmptyResponse = errors.New("empty completion response")

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}
