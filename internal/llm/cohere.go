package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Compile-time interface check
var _ Completer = (*Cohere)(nil)

// DefaultCohereModel is the chat model used when none is configured.
const DefaultCohereModel = "command-r-08-2024"

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 4 << 20

// HTTPDoer is the subset of *http.Client used by the HTTP-based clients.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Cohere implements Completer against the Cohere v1 chat endpoint.
type Cohere struct {
	http       HTTPDoer
	apiKey     string
	baseURL    string
	model      string
	clientName string
}

// CohereOption configures a Cohere client.
type CohereOption func(*Cohere)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c HTTPDoer) CohereOption {
	return func(co *Cohere) { co.http = c }
}

// WithClientName sets the X-Client-Name header sent with every request.
func WithClientName(name string) CohereOption {
	return func(co *Cohere) { co.clientName = name }
}

// NewCohere creates a Cohere chat client.
func NewCohere(apiKey, baseURL, model string, opts ...CohereOption) *Cohere {
	if model == "" {
		model = DefaultCohereModel
	}
	c := &Cohere{
		http:    &http.Client{Timeout: 2 * time.Minute},
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type cohereChatMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type cohereChatRequest struct {
	Model       string              `json:"model"`
	Message     string              `json:"message"`
	Preamble    string              `json:"preamble,omitempty"`
	ChatHistory []cohereChatMessage `json:"chat_history,omitempty"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

// Complete sends one chat request and returns the generated text.
func (c *Cohere) Complete(ctx context.Context, req Request) (string, error) {
	body := cohereChatRequest{
		Model:       c.model,
		Message:     req.Message,
		Preamble:    req.Preamble,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.History {
		role := "USER"
		if m.Role == RoleAssistant {
			role = "CHATBOT"
		}
		body.ChatHistory = append(body.ChatHistory, cohereChatMessage{Role: role, Message: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.clientName != "" {
		httpReq.Header.Set("X-Client-Name", c.clientName)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{
			Provider:   "cohere",
			StatusCode: resp.StatusCode,
			Message:    gjson.GetBytes(raw, "message").String(),
		}
	}

	if !gjson.ValidBytes(raw) {
		return "", fmt.Errorf("chat response is not valid JSON")
	}
	text := gjson.GetBytes(raw, "text").String()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// ModelName returns the chat model name
func (c *Cohere) ModelName() string {
	return c.model
}
