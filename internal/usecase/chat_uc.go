// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/adapter"
	"ai-chat-subscription/internal/domain/ports/repository"
	ucport "ai-chat-subscription/internal/domain/ports/usecase"
	"ai-chat-subscription/internal/infra/logging"
	"ai-chat-subscription/internal/infra/metrics"
	"ai-chat-subscription/internal/infra/redis"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

const (
	DefaultHistoryWindow = 20
	chatRateAction       = "chat"
	chatRateWindow       = time.Minute
)

// ChatTurn is the result of one posted message.
type ChatTurn struct {
	Assistant *model.ChatMessage
	Session   *model.ChatSession
	Usage     adapter.Usage
}

// ChatOverview backs the chat page: the caller's sessions and, when a session
// was selected, its messages.
type ChatOverview struct {
	Sessions []*model.ChatSession
	Messages []*model.ChatMessage
}

type ChatUseCase interface {
	PostMessage(ctx context.Context, ownerID, content, sessionID string) (*ChatTurn, error)
	ListSessions(ctx context.Context, ownerID string) ([]*model.ChatSession, error)
	GetHistory(ctx context.Context, ownerID, sessionID string) ([]*model.ChatMessage, error)
	Overview(ctx context.Context, ownerID, sessionID string) (*ChatOverview, error)
	DeleteSession(ctx context.Context, ownerID, sessionID string) error
}

// RateLimiter is satisfied by redis.RateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SystemPromptSource is satisfied by PromptUseCase.
type SystemPromptSource interface {
	Current(ctx context.Context) (string, error)
}

type ChatOptions struct {
	HistoryWindow int // messages sent as context, default 20
	RateLimit     int // messages per minute per user, 0 disables
	PageSize      int // sessions listed, 0 means all
}

type chatUC struct {
	sessions repository.ChatSessionRepository
	ai       adapter.CompletionAdapter
	gate     ucport.SubscriptionGate
	prompts  SystemPromptSource
	limiter  RateLimiter
	tm       repository.TransactionManager
	opts     ChatOptions
	log      *zerolog.Logger
	now      func() time.Time
}

func NewChatUseCase(
	sessions repository.ChatSessionRepository,
	ai adapter.CompletionAdapter,
	gate ucport.SubscriptionGate,
	prompts SystemPromptSource,
	limiter RateLimiter,
	tm repository.TransactionManager,
	opts ChatOptions,
	logger *zerolog.Logger,
) *chatUC {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	return &chatUC{
		sessions: sessions,
		ai:       ai,
		gate:     gate,
		prompts:  prompts,
		limiter:  limiter,
		tm:       tm,
		opts:     opts,
		log:      logger,
		now:      time.Now,
	}
}

func (c *chatUC) PostMessage(ctx context.Context, ownerID, content, sessionID string) (*ChatTurn, error) {
	defer logging.TraceDuration(c.log, "ChatUC.PostMessage")()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.NewValidationError("message", "must not be blank")
	}
	if err := c.gate.Require(ctx, ownerID); err != nil {
		return nil, err
	}
	if err := c.allow(ctx, ownerID); err != nil {
		return nil, err
	}

	sess, err := c.resolveSession(ctx, ownerID, content, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, err
	}
	ctx = logging.WithSessID(ctx, sess.ID)
	log := logging.With(ctx, c.log)

	history, err := c.sessions.RecentMessages(ctx, repository.NoTX, sess.ID, c.opts.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	userMsg := c.newMessage(sess, model.RoleUser, content)
	c.store(ctx, log, userMsg)

	systemPrompt, err := c.prompts.Current(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("prompt store unavailable, using default prompt")
		systemPrompt = model.DefaultSystemPrompt
	}
	msgs := make([]adapter.Message, 0, len(history)+2)
	msgs = append(msgs, adapter.Message{Role: string(model.RoleSystem), Content: systemPrompt})
	for _, m := range model.ContextWindow(history, c.opts.HistoryWindow) {
		msgs = append(msgs, adapter.Message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, adapter.Message{Role: string(model.RoleUser), Content: content})

	start := time.Now()
	completion, err := c.ai.Complete(ctx, msgs)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		metrics.ObserveCompletion(c.ai.Name(), "", 0, 0, 0, latency, false)
		log.Error().Err(err).Str("provider", c.ai.Name()).Msg("completion failed")
		if errors.Is(err, domain.ErrUpstream) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	metrics.ObserveCompletion(completion.Provider, completion.Model, completion.Usage.PromptTokens,
		completion.Usage.CompletionTokens, completion.Usage.TotalTokens, latency, true)

	// Equal timestamps are ordered by the ULID, which increases monotonically.
	assistant := c.newMessage(sess, model.RoleAssistant, completion.Content)
	c.store(ctx, log, assistant)

	touchedAt := assistant.CreatedAt
	if err := c.sessions.Touch(ctx, repository.NoTX, sess.ID, model.DeriveSessionTitle(content), touchedAt); err != nil {
		log.Warn().Err(err).Msg("failed to touch session")
	} else {
		sess.UpdatedAt = touchedAt
		if sess.Title == nil || *sess.Title == "" {
			t := model.DeriveSessionTitle(content)
			sess.Title = &t
		}
	}

	log.Debug().Int("context_messages", len(msgs)).Int("tokens", completion.Usage.TotalTokens).Msg("chat turn completed")
	return &ChatTurn{Assistant: assistant, Session: sess, Usage: completion.Usage}, nil
}

// allow applies the per-user rate limit. A limiter failure lets the request through.
func (c *chatUC) allow(ctx context.Context, ownerID string) error {
	if c.limiter == nil || c.opts.RateLimit <= 0 {
		return nil
	}
	ok, err := c.limiter.Allow(ctx, redis.UserActionKey(ownerID, chatRateAction), c.opts.RateLimit, chatRateWindow)
	if err != nil {
		c.log.Warn().Err(err).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

func (c *chatUC) resolveSession(ctx context.Context, ownerID, content, sessionID string) (*model.ChatSession, error) {
	if sessionID != "" {
		return c.owned(ctx, ownerID, sessionID)
	}
	s := model.NewChatSession(uuid.NewString(), ownerID, content, c.now())
	if err := c.sessions.Create(ctx, repository.NoTX, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// owned loads a session and hides other users' sessions as not found.
func (c *chatUC) owned(ctx context.Context, ownerID, sessionID string) (*model.ChatSession, error) {
	s, err := c.sessions.FindByID(ctx, repository.NoTX, sessionID)
	if err != nil {
		return nil, err
	}
	if s.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (c *chatUC) newMessage(s *model.ChatSession, role model.MessageRole, content string) *model.ChatMessage {
	return &model.ChatMessage{
		ID:        ulid.Make().String(),
		SessionID: s.ID,
		OwnerID:   s.OwnerID,
		Role:      role,
		Content:   content,
		CreatedAt: c.now(),
	}
}

// store persists m best-effort; the turn proceeds when the write fails.
func (c *chatUC) store(ctx context.Context, log *zerolog.Logger, m *model.ChatMessage) {
	err := c.sessions.SaveMessage(ctx, repository.NoTX, m)
	metrics.IncChatMessage(string(m.Role), err == nil)
	if err != nil {
		log.Error().Err(err).Str("role", string(m.Role)).Msg("failed to store chat message")
	}
}

func (c *chatUC) ListSessions(ctx context.Context, ownerID string) ([]*model.ChatSession, error) {
	defer logging.TraceDuration(c.log, "ChatUC.ListSessions")()
	return c.sessions.ListByOwner(ctx, repository.NoTX, ownerID, c.opts.PageSize)
}

func (c *chatUC) GetHistory(ctx context.Context, ownerID, sessionID string) ([]*model.ChatMessage, error) {
	defer logging.TraceDuration(c.log, "ChatUC.GetHistory")()
	if _, err := c.owned(ctx, ownerID, sessionID); err != nil {
		return nil, err
	}
	return c.sessions.ListMessages(ctx, repository.NoTX, sessionID)
}

func (c *chatUC) Overview(ctx context.Context, ownerID, sessionID string) (*ChatOverview, error) {
	defer logging.TraceDuration(c.log, "ChatUC.Overview")()

	out := &ChatOverview{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := c.sessions.ListByOwner(gctx, repository.NoTX, ownerID, c.opts.PageSize)
		out.Sessions = s
		return err
	})
	if sessionID = strings.TrimSpace(sessionID); sessionID != "" {
		g.Go(func() error {
			m, err := c.GetHistory(gctx, ownerID, sessionID)
			out.Messages = m
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatUC) DeleteSession(ctx context.Context, ownerID, sessionID string) error {
	defer logging.TraceDuration(c.log, "ChatUC.DeleteSession")()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.NewValidationError("chatId", "is required")
	}
	err := c.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		s, err := c.sessions.FindByID(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if s.OwnerID != ownerID {
			return domain.ErrNotFound
		}
		if _, err := c.sessions.DeleteMessages(ctx, tx, sessionID); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		return c.sessions.Delete(ctx, tx, sessionID)
	})
	if err != nil {
		return err
	}
	logging.With(ctx, c.log).Info().Str("session_id", sessionID).Msg("chat session deleted")
	return nil
}
