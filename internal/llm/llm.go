package llm

import (
	"context"
	"errors"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one role-tagged message in a chat-completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Streamer abstracts streaming chat-completion providers.
//
// StreamChat makes a single streaming call. onToken is invoked for each text
// token as it arrives; the full concatenated text is returned only when the
// provider signals completion. If the call fails (before or mid-stream) the
// returned text is empty and err is non-nil; tokens already delivered via
// onToken are not retracted.
type Streamer interface {
	StreamChat(ctx context.Context, messages []ChatMessage, onToken func(token string)) (string, error)
}

// ErrNotImplemented is returned by the placeholder streamer.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderStreamer is a stub implementation until provider wiring is added.
type PlaceholderStreamer struct{}

// StreamChat returns ErrNotImplemented.
func (PlaceholderStreamer) StreamChat(ctx context.Context, messages []ChatMessage, onToken func(string)) (string, error) {
	_ = ctx
	_ = messages
	_ = onToken
	return "", ErrNotImplemented
}
