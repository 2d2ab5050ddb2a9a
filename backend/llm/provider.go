// Package llm talks to generative language-model APIs. Callers build a Request,
// providers return the model text as a Response; decorators add retries, per-call
// timeouts and logging.
package llm

import (
	"context"
	"encoding/json"
)

type Provider interface {
	// Generate sends the request and returns the model output. When Schema is set
	// the provider asks for native structured output and validates the result.
	Generate(ctx context.Context, req Request) (*Response, error)

	ModelID() string
}

type Request struct {
	System      string
	Messages    []Message
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserPrompt is the common single-turn request.
func UserPrompt(system, prompt string, maxTokens int) Request {
	return Request{
		System:    system,
		Messages:  []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens: maxTokens,
	}
}

// Schema is a JSON Schema definition plus a name used for caching and for
// provider-side response formats.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

type Response struct {
	// Content is the raw model text. For schema requests it is the validated JSON.
	Content    json.RawMessage
	Usage      Usage
	Model      string
	StopReason string
}

// Text returns the content as a plain string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Content)
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
