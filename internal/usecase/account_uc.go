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
	"ai-chat-subscription/internal/domain/ports/adapter"
	"ai-chat-subscription/internal/domain/ports/repository"
	ucport "ai-chat-subscription/internal/domain/ports/usecase"
	"ai-chat-subscription/internal/infra/logging"
)

// Compile-time check
var _ AccountUseCase = (*accountUC)(nil)

const (
	maxFullNameLen = 120
	maxPhoneLen    = 32
)

// AccountView is what the signed-in user sees about their own account.
type AccountView struct {
	Profile *model.Profile
	Plan    *model.Plan
	Access  model.GateDecision
	IsAdmin bool
}

// ProfileInput is a self-service profile update. Nil fields are left as is.
type ProfileInput struct {
	FullName   *string
	DocumentID *string
	Phone      *string
	BirthDate  *time.Time
}

type AccountUseCase interface {
	Me(ctx context.Context, identity *model.Identity) (*AccountView, error)
	UpdateProfile(ctx context.Context, identity *model.Identity, in ProfileInput) (*model.Profile, error)
	ChangePassword(ctx context.Context, identity *model.Identity, newPassword string) error
	DeleteAccount(ctx context.Context, identity *model.Identity) error
}

type accountUC struct {
	profiles   repository.ProfileRepository
	plans      repository.PlanRepository
	sessions   repository.ChatSessionRepository
	gate       ucport.SubscriptionGate
	identity   adapter.IdentityProvider
	admins     AdminAllowList
	tm         repository.TransactionManager
	freePlanID string
	log        *zerolog.Logger
	now        func() time.Time
}

func NewAccountUseCase(
	profiles repository.ProfileRepository,
	plans repository.PlanRepository,
	sessions repository.ChatSessionRepository,
	gate ucport.SubscriptionGate,
	identity adapter.IdentityProvider,
	admins AdminAllowList,
	tm repository.TransactionManager,
	freePlanID string,
	logger *zerolog.Logger,
) *accountUC {
	return &accountUC{
		profiles:   profiles,
		plans:      plans,
		sessions:   sessions,
		gate:       gate,
		identity:   identity,
		admins:     admins,
		tm:         tm,
		freePlanID: freePlanID,
		log:        logger,
		now:        time.Now,
	}
}

func (u *accountUC) Me(ctx context.Context, identity *model.Identity) (*AccountView, error) {
	defer logging.TraceDuration(u.log, "AccountUC.Me")()
	if identity == nil || identity.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}

	profile, err := ensureProfile(ctx, u.tm, u.profiles, identity, u.freePlanID, u.now())
	if err != nil {
		return nil, err
	}
	view := &AccountView{Profile: profile, IsAdmin: u.admins.Contains(identity.Email)}

	if profile.ActivePlan != "" {
		plan, err := u.plans.FindByID(ctx, repository.NoTX, profile.ActivePlan)
		switch {
		case err == nil:
			view.Plan = plan
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}
	view.Access, err = u.gate.Check(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (u *accountUC) UpdateProfile(ctx context.Context, identity *model.Identity, in ProfileInput) (*model.Profile, error) {
	defer logging.TraceDuration(u.log, "AccountUC.UpdateProfile")()
	if identity == nil || identity.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}

	patch, err := profilePatchFrom(in, u.now())
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, domain.NewValidationError("", "no changes")
	}

	profile, err := ensureProfile(ctx, u.tm, u.profiles, identity, u.freePlanID, u.now())
	if err != nil {
		return nil, err
	}
	if err := u.profiles.UpdateByID(ctx, repository.NoTX, profile.ID, patch); err != nil {
		return nil, err
	}
	patch.Apply(profile, u.now())
	return profile, nil
}

func profilePatchFrom(in ProfileInput, now time.Time) (model.ProfilePatch, error) {
	var patch model.ProfilePatch
	if in.FullName != nil {
		v := strings.Join(strings.Fields(*in.FullName), " ")
		if len([]rune(v)) > maxFullNameLen {
			return patch, domain.NewValidationError("fullName", fmt.Sprintf("must have at most %d characters", maxFullNameLen))
		}
		patch.FullName = &v
	}
	if in.DocumentID != nil {
		v := model.NormalizeDocumentID(*in.DocumentID)
		if v != "" && !model.IsValidCPF(v) {
			return patch, domain.NewValidationError("cpf", "is not a valid CPF")
		}
		patch.DocumentID = &v
	}
	if in.Phone != nil {
		v := strings.TrimSpace(*in.Phone)
		if len(v) > maxPhoneLen {
			return patch, domain.NewValidationError("phone", "is too long")
		}
		patch.Phone = &v
	}
	if in.BirthDate != nil {
		d := in.BirthDate.UTC().Truncate(24 * time.Hour)
		if d.After(now) {
			return patch, domain.NewValidationError("birthDate", "must be in the past")
		}
		bd := &d
		patch.BirthDate = &bd
	}
	return patch, nil
}

func (u *accountUC) ChangePassword(ctx context.Context, identity *model.Identity, newPassword string) error {
	defer logging.TraceDuration(u.log, "AccountUC.ChangePassword")()
	if identity == nil || identity.UserID == "" {
		return domain.ErrUnauthenticated
	}
	pw := strings.TrimSpace(newPassword)
	if len(pw) < model.MinPasswordLength {
		return domain.NewValidationError("password", fmt.Sprintf("must have at least %d characters", model.MinPasswordLength))
	}
	return u.identity.UpdatePassword(ctx, identity.UserID, pw)
}

// DeleteAccount removes messages, sessions and the profile in one transaction,
// then deletes the identity. A failed identity deletion leaves the user able
// to sign in with an empty account; it is logged and returned.
func (u *accountUC) DeleteAccount(ctx context.Context, identity *model.Identity) error {
	defer logging.TraceDuration(u.log, "AccountUC.DeleteAccount")()
	if identity == nil || identity.UserID == "" {
		return domain.ErrUnauthenticated
	}
	id := identity.UserID

	var msgs, sess int64
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if msgs, err = u.sessions.DeleteMessagesByOwner(ctx, tx, id); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if sess, err = u.sessions.DeleteByOwner(ctx, tx, id); err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		if err = u.profiles.Delete(ctx, tx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := u.identity.DeleteUser(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		u.log.Error().Err(err).Str("user_id", id).Msg("account data removed but identity deletion failed")
		return err
	}
	u.log.Info().Str("user_id", id).Int64("messages", msgs).Int64("sessions", sess).Msg("account deleted")
	return nil
}
