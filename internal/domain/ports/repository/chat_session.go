package repository

import (
	"context"
	"time"

	"ai-chat-subscription/internal/domain/model"
)

// -----------------------------
// Chat Sessions
// -----------------------------

type ChatSessionRepository interface {
	Create(ctx context.Context, tx Tx, s *model.ChatSession) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.ChatSession, error)
	// ListByOwner orders by updated_at desc. limit <= 0 means no limit.
	ListByOwner(ctx context.Context, tx Tx, ownerID string, limit int) ([]*model.ChatSession, error)
	// Touch bumps updated_at and sets the title only when it is still NULL.
	Touch(ctx context.Context, tx Tx, id string, title string, at time.Time) error
	Delete(ctx context.Context, tx Tx, id string) error
	DeleteByOwner(ctx context.Context, tx Tx, ownerID string) (int64, error)
	Count(ctx context.Context, tx Tx) (int, error)

	SaveMessage(ctx context.Context, tx Tx, m *model.ChatMessage) error
	// RecentMessages returns at most limit of the newest messages, oldest first.
	RecentMessages(ctx context.Context, tx Tx, sessionID string, limit int) ([]*model.ChatMessage, error)
	ListMessages(ctx context.Context, tx Tx, sessionID string) ([]*model.ChatMessage, error)
	DeleteMessages(ctx context.Context, tx Tx, sessionID string) (int64, error)
	DeleteMessagesByOwner(ctx context.Context, tx Tx, ownerID string) (int64, error)
	CountMessages(ctx context.Context, tx Tx) (int, error)
	MessagesPerDay(ctx context.Context, tx Tx, role model.MessageRole, since time.Time) ([]model.DailyPoint, error)
}
