// Package llm abstracts the chat-completion provider behind Completer.
package llm

import (
	"context"
	"strings"
	"time"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps a role name to a Role. Unknown names are treated as user.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleSystem:
		return RoleSystem
	case RoleAssistant:
		return RoleAssistant
	default:
		return RoleUser
	}
}

// Message is one entry of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Schema describes the JSON object a structured request expects back.
type Schema struct {
	Properties map[string]Property
	Required   []string
	Order      []string
}

// Property is a string field of a Schema, optionally restricted to Enum.
type Property struct {
	Description string
	Enum        []string
}

// Request is an ordered conversation sent to the provider.
// When Schema is set the provider is asked for a JSON object matching it.
type Request struct {
	Messages []Message
	Schema   *Schema
}

// Completer is the completion capability: messages in, text out.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// WithTimeout bounds every call to c by d. A non-positive d returns c unchanged.
func WithTimeout(c Completer, d time.Duration) Completer {
	if d <= 0 {
		return c
	}
	return CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return c.Complete(ctx, req)
	})
}
