package repository

import (
	"context"
	"time"

	"ai-chat-subscription/internal/domain/model"
)

// ProfileRepository persists user profiles. Updates are sparse patches so
// independent writers only touch the columns they own.
type ProfileRepository interface {
	Create(ctx context.Context, tx Tx, p *model.Profile) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Profile, error)
	FindByCustomerRef(ctx context.Context, tx Tx, ref string) (*model.Profile, error)
	// UpdateByID returns domain.ErrNotFound when no row matched.
	UpdateByID(ctx context.Context, tx Tx, id string, patch model.ProfilePatch) error
	// UpdateByCustomerRef returns the number of rows updated.
	UpdateByCustomerRef(ctx context.Context, tx Tx, ref string, patch model.ProfilePatch) (int64, error)
	Delete(ctx context.Context, tx Tx, id string) error
	List(ctx context.Context, tx Tx, f model.ProfileFilter) ([]*model.Profile, error)

	CountAll(ctx context.Context, tx Tx) (int, error)
	CountByPlan(ctx context.Context, tx Tx) (map[string]int, error)
	CountWithStatus(ctx context.Context, tx Tx, statuses ...model.SubscriptionStatus) (int, error)
	SignupsPerDay(ctx context.Context, tx Tx, since time.Time) ([]model.DailyPoint, error)
}
