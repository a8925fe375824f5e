//go:build !integration

package api_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/usecase"
)

// Stubs embed the use-case interface so only the methods a test drives need
// an implementation; anything else panics, which Recover turns into a 500.

type stubIdentity struct {
	tokens map[string]*model.Identity
}

func (s *stubIdentity) VerifySession(ctx context.Context, token string) (*model.Identity, error) {
	if id, ok := s.tokens[token]; ok {
		return id, nil
	}
	return nil, domain.ErrUnauthenticated
}
func (s *stubIdentity) UpdatePassword(context.Context, string, string) error    { return nil }
func (s *stubIdentity) SetAccountSuspended(context.Context, string, bool) error { return nil }
func (s *stubIdentity) DeleteUser(context.Context, string) error                { return nil }

type stubAdmin struct {
	usecase.AdminUseCase
	admins map[string]bool

	mu      sync.Mutex
	actions []model.AdminAction
	users   []*model.Profile
}

func (s *stubAdmin) Authorize(id *model.Identity) error {
	if id == nil || id.UserID == "" {
		return domain.ErrUnauthenticated
	}
	if !s.admins[strings.ToLower(id.Email)] {
		return domain.ErrForbidden
	}
	return nil
}

func (s *stubAdmin) ApplyAction(ctx context.Context, actor *model.Identity, target string, a model.AdminAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, a)
	return nil
}

func (s *stubAdmin) ExportUsers(ctx context.Context, actor *model.Identity, f usecase.UserFilter) ([]*model.Profile, error) {
	return s.users, nil
}

type stubChat struct {
	usecase.ChatUseCase
	postErr error
	posted  []string
}

func (s *stubChat) PostMessage(ctx context.Context, owner, content, sessionID string) (*usecase.ChatTurn, error) {
	s.posted = append(s.posted, owner+":"+content)
	if s.postErr != nil {
		return nil, s.postErr
	}
	title := content
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &usecase.ChatTurn{
		Session: &model.ChatSession{
			ID: "chat-1", OwnerID: owner, Title: &title,
			CreatedAt: created, UpdatedAt: created.Add(time.Minute),
		},
		Assistant: &model.ChatMessage{ID: "m2", SessionID: "chat-1", Role: model.RoleAssistant, Content: "hi there"},
	}, nil
}

func (s *stubChat) Overview(ctx context.Context, owner, sessionID string) (*usecase.ChatOverview, error) {
	return &usecase.ChatOverview{Sessions: []*model.ChatSession{{ID: "chat-1", OwnerID: owner}}}, nil
}

type stubWebhooks struct {
	usecase.WebhookUseCase
	err       error
	headers   []string
	replayRec *model.WebhookEventRecord
}

func (s *stubWebhooks) Handle(ctx context.Context, payload []byte, header string) error {
	s.headers = append(s.headers, header)
	return s.err
}

func (s *stubWebhooks) Replay(ctx context.Context, id string) (*model.WebhookEventRecord, error) {
	return s.replayRec, s.err
}

type stubPlans struct {
	usecase.PlanUseCase
	patches []model.PlanPatch
}

func (s *stubPlans) ListActivePlans(ctx context.Context) ([]*model.Plan, error) {
	return []*model.Plan{{ID: "free", Name: "Free", IsActive: true}}, nil
}

func (s *stubPlans) UpdatePlan(ctx context.Context, id string, patch model.PlanPatch) (*model.Plan, error) {
	s.patches = append(s.patches, patch)
	return &model.Plan{ID: id, Name: "Pro", IsActive: true}, nil
}

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
