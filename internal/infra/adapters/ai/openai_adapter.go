package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.CompletionAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter talks to any OpenAI-compatible Chat Completions endpoint.
// DeepSeek is the default deployment: https://api.deepseek.com/v1
type OpenAIAdapter struct {
	client      openai.Client
	provider    string
	model       string
	temperature float64
}

type OpenAIOptions struct {
	Provider    string // label used in logs and metrics
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

func NewOpenAIAdapter(o OpenAIOptions) (*OpenAIAdapter, error) {
	if o.APIKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	if o.Model == "" {
		return nil, errors.New("openai: empty model")
	}
	if o.Provider == "" {
		o.Provider = "openai"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(o.APIKey),
		option.WithMaxRetries(1),
	}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(o.BaseURL, "/")+"/"))
	}
	if o.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(o.Timeout))
	}
	return &OpenAIAdapter{
		client:      openai.NewClient(opts...),
		provider:    o.Provider,
		model:       o.Model,
		temperature: o.Temperature,
	}, nil
}

func (o *OpenAIAdapter) Name() string { return o.provider }

func (o *OpenAIAdapter) Complete(ctx context.Context, messages []adapter.Message) (*adapter.Completion, error) {
	if len(messages) == 0 {
		return nil, domain.NewValidationError("messages", "must not be empty")
	}
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(o.temperature),
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUpstream, o.provider, err)
	}

	var content string
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			content = c.Message.Content
			break
		}
	}
	if content == "" {
		return nil, fmt.Errorf("%w: %s: empty completion", domain.ErrUpstream, o.provider)
	}

	usage := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	if usage.TotalTokens == 0 {
		usage = EstimateUsage(messages, content)
	}
	model := resp.Model
	if model == "" {
		model = o.model
	}
	return &adapter.Completion{
		ID:       resp.ID,
		Content:  content,
		Model:    model,
		Provider: o.provider,
		Usage:    usage,
	}, nil
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
