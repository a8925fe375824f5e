// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/ports/adapter"
)

var _ adapter.CompletionAdapter = (*GeminiAdapter)(nil)

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
	temperature  float32
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string, temperature float64) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel, temperature: float32(temperature)}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

func (g *GeminiAdapter) Complete(ctx context.Context, messages []adapter.Message) (*adapter.Completion, error) {
	system, rest := splitSystem(messages)
	if len(rest) == 0 {
		return nil, domain.NewValidationError("messages", "must contain a user message")
	}
	last := rest[len(rest)-1]
	if strings.ToLower(last.Role) != "user" {
		return nil, errors.New("gemini: last message must be from user")
	}

	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(g.temperature)}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	chat, err := g.client.Chats.Create(ctx, g.defaultModel, cfg, toGenAIHistory(rest[:len(rest)-1]))
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", domain.ErrUpstream, err)
	}
	resp, err := chat.SendMessage(ctx, genai.Part{Text: last.Content})
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", domain.ErrUpstream, err)
	}

	text := ""
	if resp != nil {
		text = resp.Text()
	}
	if text == "" {
		return nil, fmt.Errorf("%w: gemini: empty completion", domain.ErrUpstream)
	}
	u := adapter.Usage{}
	if resp.UsageMetadata != nil {
		u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		u.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	} else {
		u = EstimateUsage(messages, text)
	}
	return &adapter.Completion{
		ID:       resp.ResponseID,
		Content:  text,
		Model:    g.defaultModel,
		Provider: g.Name(),
		Usage:    u,
	}, nil
}

// splitSystem pulls system messages out into a single instruction; Gemini
// takes it via config rather than in the history.
func splitSystem(msgs []adapter.Message) (string, []adapter.Message) {
	var sys []string
	rest := make([]adapter.Message, 0, len(msgs))
	for _, m := range msgs {
		if strings.ToLower(m.Role) == "system" {
			sys = append(sys, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(sys, "\n\n"), rest
}

func toGenAIHistory(msgs []adapter.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.RoleUser
		switch strings.ToLower(m.Role) {
		case "assistant", "model":
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return out
}
