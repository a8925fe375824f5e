package model

import (
	"strings"
	"time"

	"ai-chat-subscription/internal/domain"
)

const (
	SystemPromptKey  = "system_prompt"
	PromptHistoryCap = 10
)

// DefaultSystemPrompt is the built-in prompt restored by a reset.
const DefaultSystemPrompt = `You are the HH3 DeepSeek Copilot, a friendly technical assistant. Always produce clear, concise and contextual answers in Brazilian Portuguese.`

// PromptSetting is the current value of the system prompt.
type PromptSetting struct {
	Value     string
	UpdatedAt time.Time
}

// PromptVersion is a superseded prompt value. Entries never change once stored.
type PromptVersion struct {
	PromptText   string
	SupersededAt time.Time
}

// PromptHistory is a capped view of superseded prompts, most recent first.
// Storage trims to the same cap inside the write transaction.
type PromptHistory struct {
	entries []PromptVersion
	cap     int
}

func NewPromptHistory(capacity int, entries ...PromptVersion) *PromptHistory {
	if capacity <= 0 {
		capacity = PromptHistoryCap
	}
	h := &PromptHistory{cap: capacity}
	for _, e := range entries {
		if len(h.entries) == h.cap {
			break
		}
		h.entries = append(h.entries, e)
	}
	return h
}

// Entries returns a copy, most recent first.
func (h *PromptHistory) Entries() []PromptVersion {
	out := make([]PromptVersion, len(h.entries))
	copy(out, h.entries)
	return out
}

// Supersede computes the history push for replacing current with next. It
// returns nil when there is nothing to record.
func Supersede(current *PromptSetting, next string, now time.Time) *PromptVersion {
	if current == nil || current.Value == "" || current.Value == next {
		return nil
	}
	return &PromptVersion{PromptText: current.Value, SupersededAt: now}
}

func NormalizePrompt(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", domain.NewValidationError("prompt", "must not be blank")
	}
	return v, nil
}

// PromptSnapshot is the read model returned to operators.
type PromptSnapshot struct {
	Current   string
	UpdatedAt *time.Time
	History   []PromptVersion
	Default   string
}
