// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/ports/adapter"
)

var _ adapter.CompletionAdapter = (*MultiAIAdapter)(nil)

// MultiAIAdapter tries providers in order and returns the first successful
// completion. A cancelled context or an invalid request stops the chain.
type MultiAIAdapter struct {
	chain []adapter.CompletionAdapter
	log   *zerolog.Logger
}

func NewMultiAIAdapter(logger *zerolog.Logger, primary adapter.CompletionAdapter, fallbacks ...adapter.CompletionAdapter) *MultiAIAdapter {
	chain := []adapter.CompletionAdapter{}
	for _, a := range append([]adapter.CompletionAdapter{primary}, fallbacks...) {
		if a != nil {
			chain = append(chain, a)
		}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &MultiAIAdapter{chain: chain, log: logger}
}

func (m *MultiAIAdapter) Name() string {
	names := make([]string, 0, len(m.chain))
	for _, a := range m.chain {
		names = append(names, a.Name())
	}
	return strings.Join(names, ",")
}

func (m *MultiAIAdapter) Complete(ctx context.Context, messages []adapter.Message) (*adapter.Completion, error) {
	if len(m.chain) == 0 {
		return nil, fmt.Errorf("%w: no completion provider configured", domain.ErrUpstream)
	}
	var errs []error
	for i, a := range m.chain {
		c, err := a.Complete(ctx, messages)
		if err == nil {
			return c, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil || errors.Is(err, domain.ErrInvalidArgument) {
			break
		}
		if i < len(m.chain)-1 {
			m.log.Warn().Err(err).Str("provider", a.Name()).Str("next", m.chain[i+1].Name()).
				Msg("completion failed, falling back")
		}
	}
	return nil, errors.Join(errs...)
}
