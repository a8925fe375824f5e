package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ai-chat-subscription/internal/domain/ports/adapter"
)

var _ adapter.CompletionAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter answers locally without any network call. Used in dev mode
// when no provider key is configured.
type NoopAIAdapter struct{}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{}
}

func (a *NoopAIAdapter) Name() string { return "noop" }

func (a *NoopAIAdapter) Complete(ctx context.Context, messages []adapter.Message) (*adapter.Completion, error) {
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	last := ""
	if n := len(messages); n > 0 {
		last = messages[n-1].Content
	}
	content := fmt.Sprintf("This is a noop AI response to: %s", last)
	return &adapter.Completion{
		ID:       "noop-" + uuid.NewString(),
		Content:  content,
		Model:    "noop",
		Provider: a.Name(),
		Usage:    EstimateUsage(messages, content),
	}, nil
}
