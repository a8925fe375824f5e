//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/adapter"
	"ai-chat-subscription/internal/domain/ports/repository"
	"ai-chat-subscription/internal/infra/redis"
)

// -----------------------------
// Utilities
// -----------------------------

func strPtr(s string) *string { return &s }

func statusPtr(s model.SubscriptionStatus) *model.SubscriptionStatus { return &s }

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

// catalog returns the default free/pro/vip plans.
func catalog() []*model.Plan {
	return []*model.Plan{
		{ID: "free", Name: "Free", Description: "free tier", PriceMonthly: decimal.Zero, IsActive: true, SortOrder: 0},
		{ID: "pro", Name: "Pro", Description: "pro tier", PriceMonthly: decimal.NewFromInt(49), ExternalPriceRef: strPtr("price_pro"), ExternalPriceRefYearly: strPtr("price_pro_y"), IsActive: true, SortOrder: 1},
		{ID: "vip", Name: "VIP", Description: "vip tier", PriceMonthly: decimal.NewFromInt(99), ExternalPriceRef: strPtr("price_vip"), IsActive: true, SortOrder: 2},
	}
}

// =============================
// Repositories
// =============================

// ---- Profiles ----

type MockProfileRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Profile

	UpdateByIDFunc func(ctx context.Context, tx repository.Tx, id string, patch model.ProfilePatch) error
	FindByIDFunc   func(ctx context.Context, tx repository.Tx, id string) (*model.Profile, error)
	Updates        int
}

var _ repository.ProfileRepository = (*MockProfileRepo)(nil)

func NewMockProfileRepo(ps ...*model.Profile) *MockProfileRepo {
	r := &MockProfileRepo{byID: map[string]*model.Profile{}}
	for _, p := range ps {
		cp := *p
		r.byID[p.ID] = &cp
	}
	return r
}

func (r *MockProfileRepo) Create(ctx context.Context, tx repository.Tx, p *model.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *MockProfileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Profile, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockProfileRepo) FindByCustomerRef(ctx context.Context, tx repository.Tx, ref string) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.ExternalCustomerRef != nil && *p.ExternalCustomerRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockProfileRepo) UpdateByID(ctx context.Context, tx repository.Tx, id string, patch model.ProfilePatch) error {
	if r.UpdateByIDFunc != nil {
		return r.UpdateByIDFunc(ctx, tx, id, patch)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if patch.IsEmpty() {
		return domain.ErrNoChanges
	}
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	patch.Apply(p, time.Now())
	r.Updates++
	return nil
}

func (r *MockProfileRepo) UpdateByCustomerRef(ctx context.Context, tx repository.Tx, ref string, patch model.ProfilePatch) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.byID {
		if p.ExternalCustomerRef != nil && *p.ExternalCustomerRef == ref {
			patch.Apply(p, time.Now())
			n++
		}
	}
	r.Updates += int(n)
	return n, nil
}

func (r *MockProfileRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *MockProfileRepo) List(ctx context.Context, tx repository.Tx, f model.ProfileFilter) ([]*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(f.Query)
	var out []*model.Profile
	for _, p := range r.byID {
		if q != "" && !strings.Contains(strings.ToLower(p.Email+" "+p.FullName+" "+p.DocumentID+" "+p.Phone), q) {
			continue
		}
		if f.Plan != "" && p.ActivePlan != f.Plan {
			continue
		}
		if f.BlockedOnly && !p.IsBlocked {
			continue
		}
		if f.Status != "" && (p.Status() != f.Status || p.IsBlocked) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MockProfileRepo) CountAll(ctx context.Context, tx repository.Tx) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), nil
}

func (r *MockProfileRepo) CountByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int{}
	for _, p := range r.byID {
		out[p.ActivePlan]++
	}
	return out, nil
}

func (r *MockProfileRepo) CountWithStatus(ctx context.Context, tx repository.Tx, statuses ...model.SubscriptionStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.byID {
		for _, s := range statuses {
			if p.Status() == s {
				n++
				break
			}
		}
	}
	return n, nil
}

func (r *MockProfileRepo) SignupsPerDay(ctx context.Context, tx repository.Tx, since time.Time) ([]model.DailyPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ts []time.Time
	for _, p := range r.byID {
		ts = append(ts, p.CreatedAt)
	}
	return dailyCounts(since, ts), nil
}

// dailyCounts buckets ts by UTC day, dropping those before since.
func dailyCounts(since time.Time, ts []time.Time) []model.DailyPoint {
	byDay := map[time.Time]int{}
	for _, t := range ts {
		if t.Before(since) {
			continue
		}
		d := t.UTC().Truncate(24 * time.Hour)
		byDay[d]++
	}
	out := make([]model.DailyPoint, 0, len(byDay))
	for d, n := range byDay {
		out = append(out, model.DailyPoint{Day: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

// ---- Plans ----

type MockPlanRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Plan

	FindByIDErr error
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo(ps ...*model.Plan) *MockPlanRepo {
	r := &MockPlanRepo{byID: map[string]*model.Plan{}}
	for _, p := range ps {
		cp := *p
		r.byID[p.ID] = &cp
	}
	return r
}

func (r *MockPlanRepo) Create(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *MockPlanRepo) Update(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if r.FindByIDErr != nil {
		return nil, r.FindByIDErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPlanRepo) FindByPriceRef(ctx context.Context, tx repository.Tx, ref string) (*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if (p.ExternalPriceRef != nil && *p.ExternalPriceRef == ref) ||
			(p.ExternalPriceRefYearly != nil && *p.ExternalPriceRefYearly == ref) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPlanRepo) List(ctx context.Context, tx repository.Tx, includeInactive bool) ([]*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Plan
	for _, p := range r.byID {
		if !includeInactive && !p.IsActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// ---- Chat sessions and messages ----

type MockChatSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.ChatSession
	messages []*model.ChatMessage

	SaveMessageErr error
	TouchErr       error
	// DeleteErr fails Delete after messages were removed, to exercise rollback paths.
	DeleteErr error
}

var _ repository.ChatSessionRepository = (*MockChatSessionRepo)(nil)

func NewMockChatSessionRepo() *MockChatSessionRepo {
	return &MockChatSessionRepo{sessions: map[string]*model.ChatSession{}}
}

func (r *MockChatSessionRepo) Create(ctx context.Context, tx repository.Tx, s *model.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *MockChatSessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MockChatSessionRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit int) ([]*model.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ChatSession
	for _, s := range r.sessions {
		if s.OwnerID == ownerID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockChatSessionRepo) Touch(ctx context.Context, tx repository.Tx, id, title string, at time.Time) error {
	if r.TouchErr != nil {
		return r.TouchErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.UpdatedAt = at
	if (s.Title == nil || *s.Title == "") && title != "" {
		s.Title = &title
	}
	return nil
}

func (r *MockChatSessionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *MockChatSessionRepo) DeleteByOwner(ctx context.Context, tx repository.Tx, ownerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.OwnerID == ownerID {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *MockChatSessionRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions), nil
}

func (r *MockChatSessionRepo) SaveMessage(ctx context.Context, tx repository.Tx, m *model.ChatMessage) error {
	if r.SaveMessageErr != nil {
		return r.SaveMessageErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *MockChatSessionRepo) sorted(sessionID string) []*model.ChatMessage {
	var out []*model.ChatMessage
	for _, m := range r.messages {
		if m.SessionID == sessionID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *MockChatSessionRepo) RecentMessages(ctx context.Context, tx repository.Tx, sessionID string, limit int) ([]*model.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.ContextWindow(r.sorted(sessionID), limit), nil
}

func (r *MockChatSessionRepo) ListMessages(ctx context.Context, tx repository.Tx, sessionID string) ([]*model.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(sessionID), nil
}

func (r *MockChatSessionRepo) deleteWhere(match func(*model.ChatMessage) bool) int64 {
	kept := r.messages[:0]
	var n int64
	for _, m := range r.messages {
		if match(m) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.messages = kept
	return n
}

func (r *MockChatSessionRepo) DeleteMessages(ctx context.Context, tx repository.Tx, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteWhere(func(m *model.ChatMessage) bool { return m.SessionID == sessionID }), nil
}

func (r *MockChatSessionRepo) DeleteMessagesByOwner(ctx context.Context, tx repository.Tx, ownerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteWhere(func(m *model.ChatMessage) bool { return m.OwnerID == ownerID }), nil
}

func (r *MockChatSessionRepo) CountMessages(ctx context.Context, tx repository.Tx) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages), nil
}

func (r *MockChatSessionRepo) MessagesPerDay(ctx context.Context, tx repository.Tx, role model.MessageRole, since time.Time) ([]model.DailyPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ts []time.Time
	for _, m := range r.messages {
		if m.Role == role {
			ts = append(ts, m.CreatedAt)
		}
	}
	return dailyCounts(since, ts), nil
}

func (r *MockChatSessionRepo) AllMessages() []*model.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.ChatMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

// ---- Prompt settings ----

type MockPromptRepo struct {
	mu      sync.Mutex
	current map[string]*model.PromptSetting
	history map[string][]model.PromptVersion

	SaveErr error
}

var _ repository.PromptRepository = (*MockPromptRepo)(nil)

func NewMockPromptRepo() *MockPromptRepo {
	return &MockPromptRepo{current: map[string]*model.PromptSetting{}, history: map[string][]model.PromptVersion{}}
}

func (r *MockPromptRepo) GetCurrent(ctx context.Context, tx repository.Tx, key string) (*model.PromptSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.current[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MockPromptRepo) GetCurrentForUpdate(ctx context.Context, tx repository.Tx, key string) (*model.PromptSetting, error) {
	return r.GetCurrent(ctx, tx, key)
}

func (r *MockPromptRepo) SaveCurrent(ctx context.Context, tx repository.Tx, key string, s *model.PromptSetting) error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.current[key] = &cp
	return nil
}

func (r *MockPromptRepo) ListHistory(ctx context.Context, tx repository.Tx, key string, limit int) ([]model.PromptVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.history[key]
	if limit > 0 && len(h) > limit {
		h = h[:limit]
	}
	out := make([]model.PromptVersion, len(h))
	copy(out, h)
	return out, nil
}

func (r *MockPromptRepo) PushHistory(ctx context.Context, tx repository.Tx, key string, v model.PromptVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[key] = append([]model.PromptVersion{v}, r.history[key]...)
	return nil
}

func (r *MockPromptRepo) TrimHistory(ctx context.Context, tx repository.Tx, key string, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history[key]) > keep {
		r.history[key] = r.history[key][:keep]
	}
	return nil
}

// StoredHistoryLen reports the untrimmed row count, as a table would.
func (r *MockPromptRepo) StoredHistoryLen(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history[key])
}

// ---- Webhook audit ----

type MockWebhookEventRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.WebhookEventRecord
	Upserts int

	UpsertErr error
}

var _ repository.WebhookEventRepository = (*MockWebhookEventRepo)(nil)

func NewMockWebhookEventRepo() *MockWebhookEventRepo {
	return &MockWebhookEventRepo{byID: map[string]*model.WebhookEventRecord{}}
}

func (r *MockWebhookEventRepo) Upsert(ctx context.Context, tx repository.Tx, rec *model.WebhookEventRecord) error {
	if r.UpsertErr != nil {
		return r.UpsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Upserts++
	if old, ok := r.byID[rec.ExternalEventID]; ok {
		old.EventType = rec.EventType
		old.Status = rec.Status
		old.ErrorMessage = rec.ErrorMessage
		old.ProcessedAt = rec.ProcessedAt
		return nil
	}
	cp := *rec
	r.byID[rec.ExternalEventID] = &cp
	return nil
}

func (r *MockWebhookEventRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.WebhookEventRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *MockWebhookEventRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.WebhookEventRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.WebhookEventRecord
	for _, rec := range r.byID {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockWebhookEventRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// ---- Admin logs ----

type MockAdminLogRepo struct {
	mu      sync.Mutex
	entries []*model.AdminLog
}

var _ repository.AdminLogRepository = (*MockAdminLogRepo)(nil)

func (r *MockAdminLogRepo) Save(ctx context.Context, tx repository.Tx, l *model.AdminLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *MockAdminLogRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AdminLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.AdminLog, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0; i-- {
		out = append(out, r.entries[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockAdminLogRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// =============================
// Adapters
// =============================

// ---- Completion ----

type MockAI struct {
	mu sync.Mutex

	CompleteFunc func(ctx context.Context, msgs []adapter.Message) (*adapter.Completion, error)
	Calls        [][]adapter.Message
}

var _ adapter.CompletionAdapter = (*MockAI)(nil)

func (m *MockAI) Name() string { return "mock" }

func (m *MockAI) Complete(ctx context.Context, msgs []adapter.Message) (*adapter.Completion, error) {
	m.mu.Lock()
	cp := make([]adapter.Message, len(msgs))
	copy(cp, msgs)
	m.Calls = append(m.Calls, cp)
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, msgs)
	}
	return &adapter.Completion{
		ID:       "cmpl-" + uuid.NewString(),
		Content:  "reply to: " + msgs[len(msgs)-1].Content,
		Model:    "mock-model",
		Provider: "mock",
		Usage:    adapter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// ---- Identity provider ----

type MockIdentity struct {
	mu        sync.Mutex
	Passwords map[string]string
	Suspended map[string]bool
	Deleted   []string

	Err error
}

var _ adapter.IdentityProvider = (*MockIdentity)(nil)

func NewMockIdentity() *MockIdentity {
	return &MockIdentity{Passwords: map[string]string{}, Suspended: map[string]bool{}}
}

func (m *MockIdentity) VerifySession(ctx context.Context, token string) (*model.Identity, error) {
	return nil, domain.ErrUnauthenticated
}

func (m *MockIdentity) UpdatePassword(ctx context.Context, userID, pw string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Passwords[userID] = pw
	return nil
}

func (m *MockIdentity) SetAccountSuspended(ctx context.Context, userID string, suspended bool) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Suspended[userID] = suspended
	return nil
}

func (m *MockIdentity) DeleteUser(ctx context.Context, userID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, userID)
	return nil
}

// ---- Billing gateway ----

type MockBilling struct {
	mu        sync.Mutex
	Customers []string
	Checkouts []adapter.CheckoutRequest
	Portals   []string

	Err error
}

var _ adapter.BillingGateway = (*MockBilling)(nil)

func (m *MockBilling) Name() string { return "mock" }

func (m *MockBilling) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Customers = append(m.Customers, userID)
	return "cus_" + userID, nil
}

func (m *MockBilling) CreateCheckoutSession(ctx context.Context, req adapter.CheckoutRequest) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Checkouts = append(m.Checkouts, req)
	return "https://checkout.test/" + req.PriceRef, nil
}

func (m *MockBilling) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Portals = append(m.Portals, customerRef)
	return "https://portal.test/" + customerRef, nil
}

// ---- Webhook verifier ----

// MockVerifier accepts the header "valid" and rejects anything else.
type MockVerifier struct{}

func (MockVerifier) Verify(payload []byte, header string) error {
	if header != "valid" {
		return domain.ErrInvalidSignature
	}
	return nil
}

// ---- Rate limiter ----

type MockRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	Err    error
}

func NewMockRateLimiter() *MockRateLimiter {
	return &MockRateLimiter{counts: map[string]int{}}
}

func (l *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.Err != nil {
		return false, l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

// =============================
// Infra
// =============================

// ---- Transaction manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	Calls      int
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- In-memory Locker (implements redis.Locker) ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
	Locks int
}

var _ redis.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", redis.ErrLockHeld
	}
	tok := uuid.NewString()
	l.held[key] = tok
	l.Locks++
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

func (l *MockLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key] != ""
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
