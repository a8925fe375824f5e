package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
	"ai-chat-subscription/internal/infra/logging"
)

// Compile-time check
var _ PlanUseCase = (*planUC)(nil)

// PlanUseCase is the plan catalog.
type PlanUseCase interface {
	ListActivePlans(ctx context.Context) ([]*model.Plan, error)
	ListPlans(ctx context.Context, includeInactive bool) ([]*model.Plan, error)
	GetPlanByID(ctx context.Context, id string) (*model.Plan, error)
	GetPlanByExternalPriceRef(ctx context.Context, ref string) (*model.Plan, error)
	CreatePlan(ctx context.Context, in model.PlanInput) (*model.Plan, error)
	UpdatePlan(ctx context.Context, id string, patch model.PlanPatch) (*model.Plan, error)
	DeactivatePlan(ctx context.Context, id string) (*model.Plan, error)
}

type planUC struct {
	plans repository.PlanRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
	now   func() time.Time
}

func NewPlanUseCase(plans repository.PlanRepository, tm repository.TransactionManager, logger *zerolog.Logger) *planUC {
	return &planUC{
		plans: plans,
		tm:    tm,
		log:   logger,
		now:   time.Now,
	}
}

func (u *planUC) ListActivePlans(ctx context.Context) ([]*model.Plan, error) {
	defer logging.TraceDuration(u.log, "PlanUC.ListActivePlans")()
	return u.plans.List(ctx, repository.NoTX, false)
}

func (u *planUC) ListPlans(ctx context.Context, includeInactive bool) ([]*model.Plan, error) {
	defer logging.TraceDuration(u.log, "PlanUC.ListPlans")()
	return u.plans.List(ctx, repository.NoTX, includeInactive)
}

func (u *planUC) GetPlanByID(ctx context.Context, id string) (*model.Plan, error) {
	defer logging.TraceDuration(u.log, "PlanUC.GetPlanByID")()
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrNotFound
	}
	return u.plans.FindByID(ctx, repository.NoTX, id)
}

func (u *planUC) GetPlanByExternalPriceRef(ctx context.Context, ref string) (*model.Plan, error) {
	defer logging.TraceDuration(u.log, "PlanUC.GetPlanByExternalPriceRef")()
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrNotFound
	}
	return u.plans.FindByPriceRef(ctx, repository.NoTX, ref)
}

func (u *planUC) CreatePlan(ctx context.Context, in model.PlanInput) (*model.Plan, error) {
	defer logging.TraceDuration(u.log, "PlanUC.CreatePlan")()

	plan, err := model.NewPlan(in, u.now())
	if err != nil {
		return nil, err
	}
	err = u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ctx context.Context, tx repository.Tx) error {
		existing, err := u.plans.FindByID(ctx, tx, plan.ID)
		switch {
		case err == nil && existing != nil:
			return fmt.Errorf("plan %q: %w", plan.ID, domain.ErrAlreadyExists)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return err
		}
		return u.plans.Create(ctx, tx, plan)
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("plan_id", plan.ID).Msg("plan created")
	return plan, nil
}

func (u *planUC) UpdatePlan(ctx context.Context, id string, patch model.PlanPatch) (*model.Plan, error) {
	defer logging.TraceDuration(u.log, "PlanUC.UpdatePlan")()
	return u.mutate(ctx, id, patch)
}

// DeactivatePlan retires a plan. The row is kept so existing profiles and
// billing events keep resolving it.
func (u *planUC) DeactivatePlan(ctx context.Context, id string) (*model.Plan, error) {
	defer logging.TraceDuration(u.log, "PlanUC.DeactivatePlan")()
	inactive := false
	return u.mutate(ctx, id, model.PlanPatch{IsActive: &inactive})
}

func (u *planUC) mutate(ctx context.Context, id string, patch model.PlanPatch) (*model.Plan, error) {
	if patch.IsEmpty() {
		return nil, domain.NewValidationError("", "no changes")
	}
	var out *model.Plan
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(ctx context.Context, tx repository.Tx) error {
		plan, err := u.plans.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := patch.Apply(plan, u.now()); err != nil {
			if errors.Is(err, domain.ErrNoChanges) {
				return domain.NewValidationError("", "no changes")
			}
			return err
		}
		if err := u.plans.Update(ctx, tx, plan); err != nil {
			return err
		}
		out = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("plan_id", out.ID).Bool("active", out.IsActive).Msg("plan updated")
	return out, nil
}
