package repository

import (
	"context"

	"ai-chat-subscription/internal/domain/model"
)

type AdminLogRepository interface {
	Save(ctx context.Context, tx Tx, l *model.AdminLog) error
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*model.AdminLog, error)
}
