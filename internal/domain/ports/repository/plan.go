package repository

import (
	"context"

	"ai-chat-subscription/internal/domain/model"
)

// PlanRepository is the port for the plan catalog.
type PlanRepository interface {
	Create(ctx context.Context, tx Tx, plan *model.Plan) error
	Update(ctx context.Context, tx Tx, plan *model.Plan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	// FindByPriceRef matches either the monthly or the yearly processor price id.
	FindByPriceRef(ctx context.Context, tx Tx, ref string) (*model.Plan, error)
	// List orders by sort_order asc, then updated_at desc.
	List(ctx context.Context, tx Tx, includeInactive bool) ([]*model.Plan, error)
}
