package repository

import (
	"context"

	"ai-chat-subscription/internal/domain/model"
)

type WebhookEventRepository interface {
	// Upsert inserts the record or, on conflict of the event id, overwrites
	// type, status, error and processed_at. Payload and received_at are kept.
	Upsert(ctx context.Context, tx Tx, rec *model.WebhookEventRecord) error
	FindByID(ctx context.Context, tx Tx, eventID string) (*model.WebhookEventRecord, error)
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*model.WebhookEventRecord, error)
}
