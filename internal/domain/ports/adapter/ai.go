package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage for a single completion call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the single assistant reply produced for a prompt context.
type Completion struct {
	ID       string
	Content  string
	Model    string
	Provider string
	Usage    Usage
}

// CompletionAdapter is the port for the remote language model. Messages are
// sent in order; the first one is normally the system prompt.
type CompletionAdapter interface {
	Name() string
	Complete(ctx context.Context, messages []Message) (*Completion, error)
}
