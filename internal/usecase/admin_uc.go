package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/adapter"
	"ai-chat-subscription/internal/domain/ports/repository"
	"ai-chat-subscription/internal/infra/logging"
	"ai-chat-subscription/internal/infra/metrics"
)

// Compile-time check
var _ AdminUseCase = (*adminUC)(nil)

const (
	defaultUserPageSize = 50
	maxUserPageSize     = 200
	defaultDetailLimit  = 8
	minDetailLimit      = 5
	maxDetailLimit      = 25
	defaultLogsLimit    = 20
	dashboardDays       = 14
)

// AdminAllowList holds the operator emails, compared case-insensitively.
type AdminAllowList struct {
	emails map[string]struct{}
}

func NewAdminAllowList(emails []string) AdminAllowList {
	l := AdminAllowList{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			l.emails[e] = struct{}{}
		}
	}
	return l
}

func (l AdminAllowList) Contains(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	_, ok := l.emails[email]
	return ok
}

func (l AdminAllowList) Len() int { return len(l.emails) }

// UserFilter is the directory query as received from operators. Unknown plans
// and statuses are ignored rather than rejected.
type UserFilter struct {
	Query  string
	Plan   string
	Status string
	Limit  int
	Offset int
}

type UserDetail struct {
	Profile  *model.Profile
	Sessions []*model.ChatSession
}

type AdminUseCase interface {
	Authorize(identity *model.Identity) error
	ApplyAction(ctx context.Context, actor *model.Identity, targetUserID string, action model.AdminAction) error
	UserDetail(ctx context.Context, actor *model.Identity, userID string, sessionLimit int) (*UserDetail, error)
	ListUsers(ctx context.Context, actor *model.Identity, f UserFilter) ([]*model.Profile, error)
	ExportUsers(ctx context.Context, actor *model.Identity, f UserFilter) ([]*model.Profile, error)
	RecentLogs(ctx context.Context, actor *model.Identity, limit int) ([]*model.AdminLog, error)
	Dashboard(ctx context.Context, actor *model.Identity) (*model.Dashboard, error)
}

type adminUC struct {
	allow    AdminAllowList
	profiles repository.ProfileRepository
	plans    repository.PlanRepository
	sessions repository.ChatSessionRepository
	prompts  repository.PromptRepository
	logs     repository.AdminLogRepository
	identity adapter.IdentityProvider
	log      *zerolog.Logger
	now      func() time.Time
}

func NewAdminUseCase(
	allow AdminAllowList,
	profiles repository.ProfileRepository,
	plans repository.PlanRepository,
	sessions repository.ChatSessionRepository,
	prompts repository.PromptRepository,
	logs repository.AdminLogRepository,
	identity adapter.IdentityProvider,
	logger *zerolog.Logger,
) *adminUC {
	return &adminUC{
		allow:    allow,
		profiles: profiles,
		plans:    plans,
		sessions: sessions,
		prompts:  prompts,
		logs:     logs,
		identity: identity,
		log:      logger,
		now:      time.Now,
	}
}

func (u *adminUC) Authorize(identity *model.Identity) error {
	if identity == nil || identity.UserID == "" {
		return domain.ErrUnauthenticated
	}
	if !u.allow.Contains(identity.Email) {
		return domain.ErrForbidden
	}
	return nil
}

func (u *adminUC) ApplyAction(ctx context.Context, actor *model.Identity, targetUserID string, action model.AdminAction) (err error) {
	defer logging.TraceDuration(u.log, "AdminUC.ApplyAction")()

	if err := u.Authorize(actor); err != nil {
		metrics.IncAdminAction(string(action.Kind), "denied")
		return err
	}
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.IncAdminAction(string(action.Kind), status)
	}()

	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return domain.NewValidationError("id", "is required")
	}

	var details map[string]any
	switch action.Kind {
	case model.ActionUpdatePlan:
		planID := strings.TrimSpace(action.Plan)
		if err := u.requireActivePlan(ctx, planID); err != nil {
			return err
		}
		if err := u.profiles.UpdateByID(ctx, repository.NoTX, targetUserID, model.ProfilePatch{ActivePlan: &planID}); err != nil {
			return err
		}
		details = map[string]any{"plan": planID}

	case model.ActionResetPassword:
		pw := strings.TrimSpace(action.Password)
		if len(pw) < model.MinPasswordLength {
			return domain.NewValidationError("newPassword", fmt.Sprintf("must have at least %d characters", model.MinPasswordLength))
		}
		if err := u.identity.UpdatePassword(ctx, targetUserID, pw); err != nil {
			return err
		}

	case model.ActionToggleBlock:
		// Identity provider first: the profile flag is only written once the
		// account is actually suspended or restored.
		if err := u.identity.SetAccountSuspended(ctx, targetUserID, action.Blocked); err != nil {
			return err
		}
		blocked := action.Blocked
		if err := u.profiles.UpdateByID(ctx, repository.NoTX, targetUserID, model.ProfilePatch{IsBlocked: &blocked}); err != nil {
			u.log.Error().Err(err).Str("target", targetUserID).Bool("blocked", blocked).
				Msg("identity provider updated but profile flag was not")
			return err
		}
		details = map[string]any{"blocked": blocked}

	default:
		return domain.NewValidationError("action", "unknown action")
	}

	u.audit(ctx, actor, string(action.Kind), targetUserID, details)
	logging.With(ctx, u.log).Info().Str("action", string(action.Kind)).Str("target", targetUserID).Msg("admin action applied")
	return nil
}

func (u *adminUC) requireActivePlan(ctx context.Context, planID string) error {
	if planID == "" {
		return domain.NewValidationError("plan", "is required")
	}
	p, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewValidationError("plan", "not found or inactive")
		}
		return err
	}
	if !p.IsActive {
		return domain.NewValidationError("plan", "not found or inactive")
	}
	return nil
}

// audit appends to the activity feed. Failures are logged only.
func (u *adminUC) audit(ctx context.Context, actor *model.Identity, action, target string, details any) {
	if u.logs == nil {
		return
	}
	entry := model.NewAdminLog(actor.UserID, action, target, details, u.now())
	if err := u.logs.Save(ctx, repository.NoTX, entry); err != nil {
		u.log.Warn().Err(err).Str("action", action).Msg("failed to write admin log")
	}
}

func (u *adminUC) UserDetail(ctx context.Context, actor *model.Identity, userID string, sessionLimit int) (*UserDetail, error) {
	defer logging.TraceDuration(u.log, "AdminUC.UserDetail")()
	if err := u.Authorize(actor); err != nil {
		return nil, err
	}
	switch {
	case sessionLimit <= 0:
		sessionLimit = defaultDetailLimit
	case sessionLimit < minDetailLimit:
		sessionLimit = minDetailLimit
	case sessionLimit > maxDetailLimit:
		sessionLimit = maxDetailLimit
	}

	out := &UserDetail{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := u.profiles.FindByID(gctx, repository.NoTX, userID)
		out.Profile = p
		return err
	})
	g.Go(func() error {
		s, err := u.sessions.ListByOwner(gctx, repository.NoTX, userID, sessionLimit)
		out.Sessions = s
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (u *adminUC) ListUsers(ctx context.Context, actor *model.Identity, f UserFilter) ([]*model.Profile, error) {
	defer logging.TraceDuration(u.log, "AdminUC.ListUsers")()
	if err := u.Authorize(actor); err != nil {
		return nil, err
	}
	if f.Limit <= 0 {
		f.Limit = defaultUserPageSize
	}
	if f.Limit > maxUserPageSize {
		f.Limit = maxUserPageSize
	}
	pf, err := u.profileFilter(ctx, f)
	if err != nil {
		return nil, err
	}
	return u.profiles.List(ctx, repository.NoTX, pf)
}

// ExportUsers returns every matching profile, ignoring pagination.
func (u *adminUC) ExportUsers(ctx context.Context, actor *model.Identity, f UserFilter) ([]*model.Profile, error) {
	defer logging.TraceDuration(u.log, "AdminUC.ExportUsers")()
	if err := u.Authorize(actor); err != nil {
		return nil, err
	}
	f.Limit, f.Offset = 0, 0
	pf, err := u.profileFilter(ctx, f)
	if err != nil {
		return nil, err
	}
	rows, err := u.profiles.List(ctx, repository.NoTX, pf)
	if err != nil {
		return nil, err
	}
	u.audit(ctx, actor, "exportUsers", "", map[string]any{"rows": len(rows), "q": f.Query, "plan": pf.Plan, "status": f.Status})
	return rows, nil
}

func (u *adminUC) profileFilter(ctx context.Context, f UserFilter) (model.ProfileFilter, error) {
	pf := model.ProfileFilter{
		Query:  strings.TrimSpace(f.Query),
		Limit:  f.Limit,
		Offset: max(f.Offset, 0),
	}
	if plan := strings.TrimSpace(f.Plan); plan != "" {
		_, err := u.plans.FindByID(ctx, repository.NoTX, plan)
		switch {
		case err == nil:
			pf.Plan = plan
		case !errors.Is(err, domain.ErrNotFound):
			return pf, err
		}
	}
	status := strings.ToLower(strings.TrimSpace(f.Status))
	if status == "blocked" {
		pf.BlockedOnly = true
	} else if s, ok := model.ParseSubscriptionStatus(status); ok {
		pf.Status = s
	}
	return pf, nil
}

func (u *adminUC) RecentLogs(ctx context.Context, actor *model.Identity, limit int) ([]*model.AdminLog, error) {
	defer logging.TraceDuration(u.log, "AdminUC.RecentLogs")()
	if err := u.Authorize(actor); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLogsLimit
	}
	return u.logs.ListRecent(ctx, repository.NoTX, limit)
}

func (u *adminUC) Dashboard(ctx context.Context, actor *model.Identity) (*model.Dashboard, error) {
	defer logging.TraceDuration(u.log, "AdminUC.Dashboard")()
	if err := u.Authorize(actor); err != nil {
		return nil, err
	}

	now := u.now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(dashboardDays - 1))

	d := &model.Dashboard{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.TotalUsers, err = u.profiles.CountAll(gctx, repository.NoTX)
		return err
	})
	g.Go(func() (err error) {
		d.ActiveSubscribers, err = u.profiles.CountWithStatus(gctx, repository.NoTX,
			model.SubscriptionStatusActive, model.SubscriptionStatusTrialing)
		return err
	})
	g.Go(func() (err error) {
		d.TotalSessions, err = u.sessions.Count(gctx, repository.NoTX)
		return err
	})
	g.Go(func() (err error) {
		d.TotalMessages, err = u.sessions.CountMessages(gctx, repository.NoTX)
		return err
	})
	g.Go(func() (err error) {
		d.UsersByPlan, err = u.profiles.CountByPlan(gctx, repository.NoTX)
		return err
	})
	g.Go(func() error {
		pts, err := u.profiles.SignupsPerDay(gctx, repository.NoTX, since)
		d.Signups = fillDays(pts, since, dashboardDays)
		return err
	})
	g.Go(func() error {
		pts, err := u.sessions.MessagesPerDay(gctx, repository.NoTX, model.RoleUser, since)
		d.UserMessages = fillDays(pts, since, dashboardDays)
		return err
	})
	g.Go(func() error {
		pts, err := u.sessions.MessagesPerDay(gctx, repository.NoTX, model.RoleAssistant, since)
		d.AssistantMessages = fillDays(pts, since, dashboardDays)
		return err
	})
	g.Go(func() error {
		s, err := u.prompts.GetCurrent(gctx, repository.NoTX, model.SystemPromptKey)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		at := s.UpdatedAt
		d.PromptUpdatedAt = &at
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// fillDays returns one point per day starting at since, zero where pts has no entry.
func fillDays(pts []model.DailyPoint, since time.Time, days int) []model.DailyPoint {
	byDay := make(map[string]int, len(pts))
	for _, p := range pts {
		byDay[p.Day.UTC().Format(time.DateOnly)] += p.Count
	}
	out := make([]model.DailyPoint, days)
	for i := range out {
		day := since.AddDate(0, 0, i)
		out[i] = model.DailyPoint{Day: day, Count: byDay[day.Format(time.DateOnly)]}
	}
	return out
}
