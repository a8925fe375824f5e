package ai

import (
	"context"

	"ai-chat-subscription/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.CompletionAdapter = (*limitedAI)(nil)

type limitedAI struct {
	inner adapter.CompletionAdapter
	sem   chan struct{}
}

// NewLimitedAI caps the number of in-flight completions. Waiting callers give
// up when their context ends.
func NewLimitedAI(inner adapter.CompletionAdapter, maxConcurrent int) adapter.CompletionAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) Name() string { return l.inner.Name() }

func (l *limitedAI) Complete(ctx context.Context, messages []adapter.Message) (*adapter.Completion, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Complete(ctx, messages)
}
