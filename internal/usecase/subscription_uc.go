package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
	ucport "ai-chat-subscription/internal/domain/ports/usecase"
	"ai-chat-subscription/internal/infra/logging"
	"ai-chat-subscription/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase is the subscription gate.
type SubscriptionUseCase interface {
	ucport.SubscriptionGate
}

type subscriptionUC struct {
	profiles   repository.ProfileRepository
	plans      repository.PlanRepository
	freePlanID string
	log        *zerolog.Logger
}

func NewSubscriptionUseCase(profiles repository.ProfileRepository, plans repository.PlanRepository, freePlanID string, logger *zerolog.Logger) *subscriptionUC {
	return &subscriptionUC{
		profiles:   profiles,
		plans:      plans,
		freePlanID: freePlanID,
		log:        logger,
	}
}

// Check loads the caller's profile and plan and evaluates model.CheckAccess.
// A missing profile or plan is not an error.
func (u *subscriptionUC) Check(ctx context.Context, userID string) (model.GateDecision, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.Check")()

	profile, err := u.profiles.FindByID(ctx, repository.NoTX, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return model.GateDecision{}, err
	}

	var plan *model.Plan
	if !profile.IsZero() && profile.ActivePlan != "" {
		plan, err = u.plans.FindByID(ctx, repository.NoTX, profile.ActivePlan)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return model.GateDecision{}, err
			}
			plan = nil
		}
	}

	d := model.CheckAccess(profile, plan, u.freePlanID)
	metrics.IncGateDecision(d.Allowed, d.Reason)
	if !d.Allowed {
		logging.With(ctx, u.log).Debug().Str("user_id", userID).Str("reason", d.Reason).Msg("gate denied")
	}
	return d, nil
}

func (u *subscriptionUC) Require(ctx context.Context, userID string) error {
	d, err := u.Check(ctx, userID)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &domain.GateError{Reason: d.Reason}
	}
	return nil
}
