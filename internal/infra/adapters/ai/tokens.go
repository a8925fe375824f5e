package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"ai-chat-subscription/internal/domain/ports/adapter"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	return enc
}

// CountTokens approximates the token count of text. It falls back to one
// token per four bytes when the encoding cannot be loaded.
func CountTokens(text string) int {
	if e := encoding(); e != nil {
		return len(e.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// EstimateUsage is used when a provider omits usage in its response.
func EstimateUsage(prompt []adapter.Message, completion string) adapter.Usage {
	in := 0
	for _, m := range prompt {
		// role and separators
		in += CountTokens(m.Content) + 4
	}
	out := CountTokens(completion)
	return adapter.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
}
