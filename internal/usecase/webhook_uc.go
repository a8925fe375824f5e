package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/adapter"
	"ai-chat-subscription/internal/domain/ports/repository"
	"ai-chat-subscription/internal/infra/logging"
	"ai-chat-subscription/internal/infra/metrics"
	"ai-chat-subscription/internal/infra/redis"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

const (
	webhookLockTTL     = 30 * time.Second
	sourceDelivery     = "delivery"
	sourceReplay       = "replay"
	defaultEventsLimit = 50
)

// WebhookUseCase consumes payment processor events and keeps one audit record
// per event id.
type WebhookUseCase interface {
	// Handle verifies, applies and audits one delivery. Errors matching
	// domain.ErrEventProcessing were audited and should be retried by the sender.
	Handle(ctx context.Context, payload []byte, signatureHeader string) error
	// Replay re-applies a stored event without signature verification.
	Replay(ctx context.Context, eventID string) (*model.WebhookEventRecord, error)
	ListEvents(ctx context.Context, limit int) ([]*model.WebhookEventRecord, error)
}

type webhookUC struct {
	verifier      adapter.WebhookVerifier
	events        repository.WebhookEventRepository
	profiles      repository.ProfileRepository
	plans         repository.PlanRepository
	locker        redis.Locker
	defaultPlanID string
	log           *zerolog.Logger
	now           func() time.Time
}

// NewWebhookUseCase wires the processor. locker may be nil, in which case
// concurrent deliveries of one event are not serialised.
func NewWebhookUseCase(
	verifier adapter.WebhookVerifier,
	events repository.WebhookEventRepository,
	profiles repository.ProfileRepository,
	plans repository.PlanRepository,
	locker redis.Locker,
	defaultPlanID string,
	logger *zerolog.Logger,
) *webhookUC {
	return &webhookUC{
		verifier:      verifier,
		events:        events,
		profiles:      profiles,
		plans:         plans,
		locker:        locker,
		defaultPlanID: defaultPlanID,
		log:           logger,
		now:           time.Now,
	}
}

func (u *webhookUC) Handle(ctx context.Context, payload []byte, signatureHeader string) error {
	defer logging.TraceDuration(u.log, "WebhookUC.Handle")()

	if err := u.verifier.Verify(payload, signatureHeader); err != nil {
		metrics.IncWebhookSignatureFailure()
		u.log.Warn().Err(err).Msg("webhook rejected")
		if !errors.Is(err, domain.ErrInvalidSignature) {
			err = fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
		}
		return err
	}

	evt, err := parseEvent(payload)
	if err != nil {
		u.log.Warn().Err(err).Msg("webhook payload rejected")
		return err
	}

	_, err = u.run(ctx, evt, payload, sourceDelivery)
	return err
}

func (u *webhookUC) Replay(ctx context.Context, eventID string) (*model.WebhookEventRecord, error) {
	defer logging.TraceDuration(u.log, "WebhookUC.Replay")()

	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, domain.NewValidationError("eventId", "is required")
	}
	stored, err := u.events.FindByID(ctx, repository.NoTX, eventID)
	if err != nil {
		return nil, err
	}
	if len(stored.RawPayload) == 0 {
		return nil, fmt.Errorf("event %s has no stored payload: %w", eventID, domain.ErrNotFound)
	}
	evt, err := parseEvent(stored.RawPayload)
	if err != nil {
		return nil, err
	}
	// The stored id is authoritative even if the payload disagrees.
	evt.ID = stored.ExternalEventID

	rec, err := u.run(ctx, evt, stored.RawPayload, sourceReplay)
	if rec != nil {
		rec.ReceivedAt = stored.ReceivedAt
	}
	return rec, err
}

func (u *webhookUC) ListEvents(ctx context.Context, limit int) ([]*model.WebhookEventRecord, error) {
	defer logging.TraceDuration(u.log, "WebhookUC.ListEvents")()
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	return u.events.ListRecent(ctx, repository.NoTX, limit)
}

// run applies evt under the per-event lock and writes the audit record.
func (u *webhookUC) run(ctx context.Context, evt *model.WebhookEvent, payload []byte, source string) (*model.WebhookEventRecord, error) {
	log := u.log.With().Str("event_id", evt.ID).Str("event_type", evt.Type).Str("source", source).Logger()

	unlock, err := u.lock(ctx, evt.ID, &log)
	if err != nil {
		return nil, err
	}
	defer unlock()

	procErr := u.apply(ctx, evt, &log)

	rec := &model.WebhookEventRecord{
		ExternalEventID: evt.ID,
		EventType:       evt.Type,
		Status:          model.WebhookEventProcessed,
		RawPayload:      json.RawMessage(payload),
		ReceivedAt:      u.now(),
	}
	if procErr != nil {
		msg := domain.SanitizeError(procErr)
		rec.Status = model.WebhookEventError
		rec.ErrorMessage = &msg
	} else {
		at := u.now()
		rec.ProcessedAt = &at
	}
	if err := u.events.Upsert(ctx, repository.NoTX, rec); err != nil {
		log.Error().Err(err).Msg("failed to write webhook audit record")
	}
	metrics.IncWebhookEvent(evt.Type, string(rec.Status), source)

	if procErr != nil {
		log.Error().Err(procErr).Msg("webhook processing failed")
		return rec, fmt.Errorf("%w: event %s: %w", domain.ErrEventProcessing, evt.ID, procErr)
	}
	log.Info().Msg("webhook processed")
	return rec, nil
}

func (u *webhookUC) lock(ctx context.Context, eventID string, log *zerolog.Logger) (func(), error) {
	noop := func() {}
	if u.locker == nil {
		return noop, nil
	}
	key := redis.WebhookEventLockKey(eventID)
	token, err := u.locker.TryLock(ctx, key, webhookLockTTL)
	switch {
	case err == nil:
		return func() {
			if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				log.Warn().Err(err).Msg("failed to release webhook lock")
			}
		}, nil
	case errors.Is(err, redis.ErrLockHeld), ctx.Err() != nil:
		return nil, fmt.Errorf("%w: event %s: %w", domain.ErrEventProcessing, eventID, err)
	default:
		// Redis outage: idempotent upserts make an unserialised run safe.
		log.Warn().Err(err).Msg("webhook lock unavailable, processing without it")
		return noop, nil
	}
}

func (u *webhookUC) apply(ctx context.Context, evt *model.WebhookEvent, log *zerolog.Logger) error {
	switch evt.Type {
	case model.EventCheckoutCompleted:
		var cs model.CheckoutSession
		if err := json.Unmarshal(evt.Data.Object, &cs); err != nil {
			return domain.NewValidationError("data.object", "malformed checkout session")
		}
		return u.applyCheckout(ctx, evt.Type, &cs, log)
	case model.EventSubscriptionCreated, model.EventSubscriptionUpdated, model.EventSubscriptionDeleted:
		var sub model.BillingSubscription
		if err := json.Unmarshal(evt.Data.Object, &sub); err != nil {
			return domain.NewValidationError("data.object", "malformed subscription")
		}
		return u.applySubscription(ctx, evt.Type, &sub, log)
	default:
		log.Debug().Msg("ignoring webhook event type")
		return nil
	}
}

func (u *webhookUC) applyCheckout(ctx context.Context, eventType string, cs *model.CheckoutSession, log *zerolog.Logger) error {
	userID := strings.TrimSpace(cs.Metadata[model.CheckoutMetaUserID])
	if cs.Customer == "" || cs.Subscription == "" || userID == "" {
		log.Warn().Bool("has_customer", cs.Customer != "").Bool("has_subscription", cs.Subscription != "").
			Bool("has_user", userID != "").Msg("checkout missing required fields, skipped")
		return nil
	}

	planID, err := u.resolvePlan(ctx, eventType, cs.Metadata[model.CheckoutMetaPlan], true, log)
	if err != nil {
		return err
	}
	status := model.SubscriptionStatusActive
	patch := model.ProfilePatch{
		ExternalCustomerRef:     &cs.Customer,
		ExternalSubscriptionRef: &cs.Subscription,
		SubscriptionStatus:      &status,
		ActivePlan:              &planID,
	}
	if err := u.profiles.UpdateByID(ctx, repository.NoTX, userID, patch); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Str("user_id", userID).Msg("checkout for unknown profile, skipped")
			return nil
		}
		return fmt.Errorf("update profile %s: %w", userID, err)
	}
	log.Info().Str("user_id", userID).Str("plan", planID).Msg("checkout applied")
	return nil
}

func (u *webhookUC) applySubscription(ctx context.Context, eventType string, sub *model.BillingSubscription, log *zerolog.Logger) error {
	if sub.Customer == "" {
		log.Warn().Msg("subscription event without customer, skipped")
		return nil
	}
	planID, err := u.resolvePlan(ctx, eventType, sub.PriceRef(), false, log)
	if err != nil {
		return err
	}
	status := model.SubscriptionStatus(strings.ToLower(strings.TrimSpace(sub.Status)))
	patch := model.ProfilePatch{
		ActivePlan:              &planID,
		ExternalSubscriptionRef: &sub.ID,
		SubscriptionStatus:      &status,
	}
	n, err := u.profiles.UpdateByCustomerRef(ctx, repository.NoTX, sub.Customer, patch)
	if err != nil {
		return fmt.Errorf("update profile for customer %s: %w", sub.Customer, err)
	}
	if n == 0 {
		log.Warn().Str("customer", logging.Redact(sub.Customer, false)).Msg("no profile for customer")
		return nil
	}
	log.Info().Str("plan", planID).Str("status", string(status)).Msg("subscription applied")
	return nil
}

// resolvePlan maps a hint to a catalog id: as a plan id (when byID), then as a
// processor price ref. Unresolvable hints fall back to the default paid plan.
func (u *webhookUC) resolvePlan(ctx context.Context, eventType, hint string, byID bool, log *zerolog.Logger) (string, error) {
	hint = strings.TrimSpace(hint)
	if hint != "" {
		if byID {
			p, err := u.plans.FindByID(ctx, repository.NoTX, hint)
			if err == nil {
				return p.ID, nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return "", fmt.Errorf("resolve plan %q: %w", hint, err)
			}
		}
		p, err := u.plans.FindByPriceRef(ctx, repository.NoTX, hint)
		if err == nil {
			return p.ID, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("resolve price %q: %w", hint, err)
		}
	}
	metrics.IncPlanFallback(eventType)
	log.Warn().Str("hint", hint).Str("fallback_plan", u.defaultPlanID).
		Msg("plan could not be resolved, using default paid plan")
	return u.defaultPlanID, nil
}

func parseEvent(payload []byte) (*model.WebhookEvent, error) {
	var evt model.WebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, domain.NewValidationError("payload", "malformed event")
	}
	if strings.TrimSpace(evt.ID) == "" || strings.TrimSpace(evt.Type) == "" {
		return nil, domain.NewValidationError("payload", "event id and type are required")
	}
	return &evt, nil
}
