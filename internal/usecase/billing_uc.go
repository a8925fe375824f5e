package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/adapter"
	"ai-chat-subscription/internal/domain/ports/repository"
	"ai-chat-subscription/internal/infra/logging"
	"ai-chat-subscription/internal/infra/metrics"
)

// Compile-time check
var _ BillingUseCase = (*billingUC)(nil)

type BillingUseCase interface {
	// Checkout returns the URL the user should be sent to. Complimentary plans
	// are switched to directly.
	Checkout(ctx context.Context, identity *model.Identity, planID string, interval model.BillingInterval) (*CheckoutResult, error)
	Portal(ctx context.Context, identity *model.Identity) (string, error)
}

type CheckoutResult struct {
	RedirectURL   string
	PlanID        string
	Complimentary bool
}

type billingUC struct {
	profiles   repository.ProfileRepository
	plans      repository.PlanRepository
	gateway    adapter.BillingGateway
	tm         repository.TransactionManager
	publicURL  string
	freePlanID string
	log        *zerolog.Logger
	now        func() time.Time
}

func NewBillingUseCase(
	profiles repository.ProfileRepository,
	plans repository.PlanRepository,
	gateway adapter.BillingGateway,
	tm repository.TransactionManager,
	publicURL, freePlanID string,
	logger *zerolog.Logger,
) *billingUC {
	return &billingUC{
		profiles:   profiles,
		plans:      plans,
		gateway:    gateway,
		tm:         tm,
		publicURL:  strings.TrimRight(publicURL, "/"),
		freePlanID: freePlanID,
		log:        logger,
		now:        time.Now,
	}
}

func (u *billingUC) Checkout(ctx context.Context, identity *model.Identity, planID string, interval model.BillingInterval) (*CheckoutResult, error) {
	defer logging.TraceDuration(u.log, "BillingUC.Checkout")()

	if identity == nil || identity.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, domain.NewValidationError("plan", "is required")
	}
	if interval == "" {
		interval = model.BillingMonthly
	}
	if interval != model.BillingMonthly && interval != model.BillingYearly {
		return nil, domain.NewValidationError("interval", "must be monthly or yearly")
	}

	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, domain.NewValidationError("plan", "not found or inactive")
	}

	profile, err := ensureProfile(ctx, u.tm, u.profiles, identity, u.freePlanID, u.now())
	if err != nil {
		return nil, err
	}

	if plan.IsComplimentary() {
		status := model.SubscriptionStatusActive
		none := ""
		patch := model.ProfilePatch{ActivePlan: &plan.ID, SubscriptionStatus: &status, ExternalSubscriptionRef: &none}
		if err := u.profiles.UpdateByID(ctx, repository.NoTX, profile.ID, patch); err != nil {
			metrics.IncCheckout(plan.ID, "error")
			return nil, err
		}
		metrics.IncCheckout(plan.ID, "complimentary")
		u.log.Info().Str("user_id", profile.ID).Str("plan", plan.ID).Msg("switched to complimentary plan")
		return &CheckoutResult{RedirectURL: u.publicURL + "/dashboard?status=free", PlanID: plan.ID, Complimentary: true}, nil
	}

	priceRef := plan.PriceRefFor(interval)
	if priceRef == "" {
		return nil, domain.NewValidationError("interval", "plan has no price for "+string(interval)+" billing")
	}

	customer := ""
	if profile.ExternalCustomerRef != nil {
		customer = *profile.ExternalCustomerRef
	}
	if customer == "" {
		customer, err = u.gateway.CreateCustomer(ctx, identity.Email, profile.ID)
		if err != nil {
			metrics.IncCheckout(plan.ID, "error")
			return nil, err
		}
		if err := u.profiles.UpdateByID(ctx, repository.NoTX, profile.ID, model.ProfilePatch{ExternalCustomerRef: &customer}); err != nil {
			metrics.IncCheckout(plan.ID, "error")
			return nil, err
		}
	}

	url, err := u.gateway.CreateCheckoutSession(ctx, adapter.CheckoutRequest{
		CustomerRef: customer,
		PriceRef:    priceRef,
		SuccessURL:  u.publicURL + "/dashboard?status=success",
		CancelURL:   u.publicURL + "/dashboard?status=cancelled",
		Metadata: map[string]string{
			model.CheckoutMetaUserID: profile.ID,
			model.CheckoutMetaPlan:   plan.ID,
		},
	})
	if err != nil {
		metrics.IncCheckout(plan.ID, "error")
		return nil, err
	}
	metrics.IncCheckout(plan.ID, "redirect")
	u.log.Info().Str("user_id", profile.ID).Str("plan", plan.ID).Str("interval", string(interval)).Msg("checkout session created")
	return &CheckoutResult{RedirectURL: url, PlanID: plan.ID}, nil
}

func (u *billingUC) Portal(ctx context.Context, identity *model.Identity) (string, error) {
	defer logging.TraceDuration(u.log, "BillingUC.Portal")()

	if identity == nil || identity.UserID == "" {
		return "", domain.ErrUnauthenticated
	}
	profile, err := u.profiles.FindByID(ctx, repository.NoTX, identity.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	if profile == nil || profile.ExternalCustomerRef == nil || *profile.ExternalCustomerRef == "" {
		return "", domain.NewValidationError("customer", "no billing customer for this account")
	}
	return u.gateway.CreatePortalSession(ctx, *profile.ExternalCustomerRef, u.publicURL+"/dashboard")
}

// ensureProfile returns the caller's profile, creating it on the
// complimentary plan when the account has none yet.
func ensureProfile(ctx context.Context, tm repository.TransactionManager, profiles repository.ProfileRepository,
	identity *model.Identity, freePlanID string, now time.Time) (*model.Profile, error) {
	var out *model.Profile
	err := tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		p, err := profiles.FindByID(ctx, tx, identity.UserID)
		if err == nil {
			out = p
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		np, err := model.NewProfile(identity.UserID, identity.Email, freePlanID, now)
		if err != nil {
			return err
		}
		if err := profiles.Create(ctx, tx, np); err != nil {
			return err
		}
		out = np
		return nil
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		// created concurrently by another request
		return profiles.FindByID(ctx, repository.NoTX, identity.UserID)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
