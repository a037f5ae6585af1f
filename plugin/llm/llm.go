// Package llm provides the model invocation capability for the turn
// pipeline. Providers are addressed through an OpenAI-compatible API; the
// model id travels with each request so one client serves every registry
// entry that shares the endpoint.
package llm

import (
	"context"
)

// Message is one chat message in a prompt.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// Request is one model invocation.
type Request struct {
	ModelID   string
	MaxTokens int
	Messages  []Message
}

// Invoker dispatches a prompt to a backend model and returns generated
// text. Invocations are never retried here: a failed call may already have
// produced billable side effects, so retrying is the caller's decision.
type Invoker interface {
	Invoke(ctx context.Context, request Request) (string, error)
}

// Helper for creating system prompts.
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// Helper for creating user messages.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// Helper for creating assistant messages.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}
