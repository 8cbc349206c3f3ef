// Package llm is the chat/embedding provider abstraction the Assistant
// Orchestrator (spec.md §4.10) streams turns through. The interface shape
// and the switch-on-type construction are grounded on
// pkg/model/provider/provider.go's Provider interface and New.
package llm

import (
	"context"
	"fmt"

	"github.com/docker/cv-index/internal/domain"
)

// Message is one entry of chat history, independent of any SDK's wire
// shape (spec.md §4.10 step 3: last 10 messages, user/assistant only).
type Message struct {
	Role    domain.MessageRole
	Content string
}

// ChatProvider streams one chat completion, calling onToken as text
// arrives and returning the fully assembled response (spec.md §4.10 step
// 4: "emit tokens to the caller via a callback").
type ChatProvider interface {
	StreamChat(ctx context.Context, systemPrompt string, history []Message, onToken func(string)) (string, error)
}

// Config selects and authenticates a provider. Type and Model correspond to
// config.ModelConfig's ChatProvider/ChatModel; config.ModelConfig has no
// API key field, so APIKey is supplied by the caller.
type Config struct {
	Type   string // "anthropic" | "openai"
	Model  string
	APIKey string
}

// New builds a ChatProvider for cfg.Type, the way provider.go's New
// switches on cfg.Type.
func New(cfg Config) (ChatProvider, error) {
	switch cfg.Type {
	case "anthropic":
		return newAnthropicProvider(cfg), nil
	case "openai":
		return newOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider type %q", cfg.Type)
	}
}
