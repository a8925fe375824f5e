package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
	"ai-chat-subscription/internal/infra/logging"
)

// Compile-time check
var _ PromptUseCase = (*promptUC)(nil)

// PromptUseCase owns the system prompt prepended to every model call.
type PromptUseCase interface {
	Get(ctx context.Context) (*model.PromptSnapshot, error)
	// Current returns the stored prompt or the built-in default.
	Current(ctx context.Context) (string, error)
	Set(ctx context.Context, value string) (*model.PromptSnapshot, error)
	Reset(ctx context.Context) (*model.PromptSnapshot, error)
}

type promptUC struct {
	prompts repository.PromptRepository
	tm      repository.TransactionManager
	log     *zerolog.Logger
	now     func() time.Time
}

func NewPromptUseCase(prompts repository.PromptRepository, tm repository.TransactionManager, logger *zerolog.Logger) *promptUC {
	return &promptUC{
		prompts: prompts,
		tm:      tm,
		log:     logger,
		now:     time.Now,
	}
}

func (u *promptUC) Get(ctx context.Context) (*model.PromptSnapshot, error) {
	defer logging.TraceDuration(u.log, "PromptUC.Get")()

	var (
		current *model.PromptSetting
		history []model.PromptVersion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := u.prompts.GetCurrent(gctx, repository.NoTX, model.SystemPromptKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		current = s
		return nil
	})
	g.Go(func() error {
		h, err := u.prompts.ListHistory(gctx, repository.NoTX, model.SystemPromptKey, model.PromptHistoryCap)
		history = h
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &model.PromptSnapshot{
		Current: model.DefaultSystemPrompt,
		History: model.NewPromptHistory(model.PromptHistoryCap, history...).Entries(),
		Default: model.DefaultSystemPrompt,
	}
	if current != nil && current.Value != "" {
		snap.Current = current.Value
		at := current.UpdatedAt
		snap.UpdatedAt = &at
	}
	return snap, nil
}

func (u *promptUC) Current(ctx context.Context) (string, error) {
	defer logging.TraceDuration(u.log, "PromptUC.Current")()
	s, err := u.prompts.GetCurrent(ctx, repository.NoTX, model.SystemPromptKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return model.DefaultSystemPrompt, nil
		}
		return model.DefaultSystemPrompt, err
	}
	if s.Value == "" {
		return model.DefaultSystemPrompt, nil
	}
	return s.Value, nil
}

// Set replaces the prompt. The previous value is pushed to the history and
// the history is trimmed to its cap within the same transaction.
func (u *promptUC) Set(ctx context.Context, value string) (*model.PromptSnapshot, error) {
	defer logging.TraceDuration(u.log, "PromptUC.Set")()

	next, err := model.NormalizePrompt(value)
	if err != nil {
		return nil, err
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		current, err := u.prompts.GetCurrentForUpdate(ctx, tx, model.SystemPromptKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		now := u.now()
		if v := model.Supersede(current, next, now); v != nil {
			if err := u.prompts.PushHistory(ctx, tx, model.SystemPromptKey, *v); err != nil {
				return err
			}
			if err := u.prompts.TrimHistory(ctx, tx, model.SystemPromptKey, model.PromptHistoryCap); err != nil {
				return err
			}
		}
		return u.prompts.SaveCurrent(ctx, tx, model.SystemPromptKey, &model.PromptSetting{Value: next, UpdatedAt: now})
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Int("length", len(next)).Msg("system prompt updated")
	return u.Get(ctx)
}

func (u *promptUC) Reset(ctx context.Context) (*model.PromptSnapshot, error) {
	defer logging.TraceDuration(u.log, "PromptUC.Reset")()
	return u.Set(ctx, model.DefaultSystemPrompt)
}
