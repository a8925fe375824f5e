//go:build !integration

package postgres

import (
	"context"
	"time"

	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
	red "ai-chat-subscription/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerPlanRepo mocks the database repository that the Plan decorator wraps.
type mockInnerPlanRepo struct {
	CreateFunc         func(ctx context.Context, tx repository.Tx, plan *model.Plan) error
	UpdateFunc         func(ctx context.Context, tx repository.Tx, plan *model.Plan) error
	FindByIDFunc       func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error)
	FindByPriceRefFunc func(ctx context.Context, tx repository.Tx, ref string) (*model.Plan, error)
	ListFunc           func(ctx context.Context, tx repository.Tx, includeInactive bool) ([]*model.Plan, error)
}

func (m *mockInnerPlanRepo) Create(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	return m.CreateFunc(ctx, tx, plan)
}
func (m *mockInnerPlanRepo) Update(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	return m.UpdateFunc(ctx, tx, plan)
}
func (m *mockInnerPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerPlanRepo) FindByPriceRef(ctx context.Context, tx repository.Tx, ref string) (*model.Plan, error) {
	return m.FindByPriceRefFunc(ctx, tx, ref)
}
func (m *mockInnerPlanRepo) List(ctx context.Context, tx repository.Tx, includeInactive bool) ([]*model.Plan, error) {
	return m.ListFunc(ctx, tx, includeInactive)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
