package repository

import (
	"context"

	"ai-chat-subscription/internal/domain/model"
)

// PromptRepository stores the current system prompt and its superseded versions.
type PromptRepository interface {
	// GetCurrent returns domain.ErrNotFound when no value was ever saved.
	GetCurrent(ctx context.Context, tx Tx, key string) (*model.PromptSetting, error)
	// GetCurrentForUpdate locks the row for the rest of tx.
	GetCurrentForUpdate(ctx context.Context, tx Tx, key string) (*model.PromptSetting, error)
	SaveCurrent(ctx context.Context, tx Tx, key string, s *model.PromptSetting) error
	// ListHistory returns at most limit versions, most recent first.
	ListHistory(ctx context.Context, tx Tx, key string, limit int) ([]model.PromptVersion, error)
	PushHistory(ctx context.Context, tx Tx, key string, v model.PromptVersion) error
	// TrimHistory deletes every version beyond the keep most recent.
	TrimHistory(ctx context.Context, tx Tx, key string, keep int) error
}
