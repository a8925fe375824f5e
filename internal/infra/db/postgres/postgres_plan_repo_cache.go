package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/repository"
	"ai-chat-subscription/internal/infra/metrics"
	red "ai-chat-subscription/internal/infra/redis"

	"github.com/rs/zerolog"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

const (
	planListActiveKey = "plans:active"
	planListAllKey    = "plans:all"
)

// planRepoCacheDecorator serves catalog reads from Redis. Reads inside a
// transaction bypass the cache so they observe uncommitted writes.
type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PlanRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &planRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: logger}
}

func planKey(id string) string       { return fmt.Sprintf("plan:%s", id) }
func planPriceKey(ref string) string { return fmt.Sprintf("plan:price:%s", ref) }

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	var cached model.Plan
	if d.get(ctx, "plan", planKey(id), &cached) {
		return &cached, nil
	}
	plan, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.set(ctx, planKey(id), plan)
	return plan, nil
}

func (d *planRepoCacheDecorator) FindByPriceRef(ctx context.Context, tx repository.Tx, ref string) (*model.Plan, error) {
	if tx != nil {
		return d.inner.FindByPriceRef(ctx, tx, ref)
	}
	var cached model.Plan
	if d.get(ctx, "plan_price", planPriceKey(ref), &cached) {
		return &cached, nil
	}
	plan, err := d.inner.FindByPriceRef(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	d.set(ctx, planPriceKey(ref), plan)
	return plan, nil
}

func (d *planRepoCacheDecorator) List(ctx context.Context, tx repository.Tx, includeInactive bool) ([]*model.Plan, error) {
	if tx != nil {
		return d.inner.List(ctx, tx, includeInactive)
	}
	key := planListActiveKey
	if includeInactive {
		key = planListAllKey
	}
	var cached []*model.Plan
	if d.get(ctx, "plan_list", key, &cached) {
		return cached, nil
	}
	plans, err := d.inner.List(ctx, tx, includeInactive)
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		d.set(ctx, key, plans)
	}
	return plans, nil
}

// For write operations, we must invalidate the cache.
func (d *planRepoCacheDecorator) Create(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	if err := d.inner.Create(ctx, tx, plan); err != nil {
		return err
	}
	d.invalidate(ctx, tx, plan)
	return nil
}

func (d *planRepoCacheDecorator) Update(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	if err := d.inner.Update(ctx, tx, plan); err != nil {
		return err
	}
	d.invalidate(ctx, tx, plan)
	return nil
}

// invalidate drops every key the plan can be reached through. Inside a
// transaction the keys are dropped again after commit, since a cache-path read
// in between can refill them with the pre-commit row.
// Price keys are not tracked individually, so a price ref change leaves the
// old ref cached until its TTL; lookups by the old ref then still resolve the
// same plan id.
func (d *planRepoCacheDecorator) invalidate(ctx context.Context, tx repository.Tx, plan *model.Plan) {
	keys := []string{planKey(plan.ID), planListActiveKey, planListAllKey}
	if plan.ExternalPriceRef != nil {
		keys = append(keys, planPriceKey(*plan.ExternalPriceRef))
	}
	if plan.ExternalPriceRefYearly != nil {
		keys = append(keys, planPriceKey(*plan.ExternalPriceRefYearly))
	}
	id := plan.ID
	del := func(ctx context.Context) {
		if err := d.cache.Del(ctx, keys...); err != nil {
			d.log.Warn().Err(err).Str("plan_id", id).Msg("plan cache invalidation failed")
		}
	}
	del(ctx)
	if tx != nil {
		repository.AfterCommit(ctx, func() { del(context.WithoutCancel(ctx)) })
	}
}

func (d *planRepoCacheDecorator) get(ctx context.Context, name, key string, dst interface{}) bool {
	val, err := d.cache.Get(ctx, key)
	if err == nil && json.Unmarshal([]byte(val), dst) == nil {
		metrics.IncCacheRequest(name, "hit")
		return true
	}
	if err != nil && !red.IsMiss(err) {
		d.log.Debug().Err(err).Str("key", key).Msg("plan cache read failed")
	}
	metrics.IncCacheRequest(name, "miss")
	return false
}

func (d *planRepoCacheDecorator) set(ctx context.Context, key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
		d.log.Debug().Err(err).Str("key", key).Msg("plan cache write failed")
	}
}
