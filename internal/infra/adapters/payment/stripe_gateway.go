// File: internal/infra/adapters/payment/stripe_gateway.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/ports/adapter"
)

var _ adapter.BillingGateway = (*StripeGateway)(nil)

// StripeGateway implements adapter.BillingGateway with the stripe-go API client.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway builds a client for secretKey. apiBase overrides the Stripe
// endpoint and is empty in production.
func NewStripeGateway(secretKey, apiBase string) (*StripeGateway, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errors.New("stripe secret key empty")
	}
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 15 * time.Second},
		MaxNetworkRetries: stripe.Int64(1),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if apiBase != "" {
		if _, err := url.Parse(apiBase); err != nil {
			return nil, fmt.Errorf("invalid stripe api base: %w", err)
		}
		cfg.URL = stripe.String(strings.TrimRight(apiBase, "/"))
	}
	b := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{API: b, Connect: b, Uploads: b})
	return &StripeGateway{api: api}, nil
}

func (s *StripeGateway) Name() string { return "stripe" }

func (s *StripeGateway) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	params.AddMetadata("userId", userID)
	params.SetIdempotencyKey("customer:" + userID)
	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", upstream("customer", err)
	}
	return c.ID, nil
}

func (s *StripeGateway) CreateCheckoutSession(ctx context.Context, req adapter.CheckoutRequest) (string, error) {
	if req.PriceRef == "" {
		return "", domain.NewValidationError("price", "plan has no billing price")
	}
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(req.CustomerRef),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceRef), Quantity: stripe.Int64(1)},
		},
		SuccessURL:          stripe.String(req.SuccessURL),
		CancelURL:           stripe.String(req.CancelURL),
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Context = ctx
	if len(req.Metadata) > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{Metadata: map[string]string{}}
		for k, v := range req.Metadata {
			params.AddMetadata(k, v)
			params.SubscriptionData.Metadata[k] = v
		}
	}
	cs, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", upstream("checkout session", err)
	}
	if cs.URL == "" {
		return "", fmt.Errorf("%w: stripe checkout session without url", domain.ErrUpstream)
	}
	return cs.URL, nil
}

func (s *StripeGateway) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerRef),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	ps, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", upstream("portal session", err)
	}
	if ps.URL == "" {
		return "", fmt.Errorf("%w: stripe portal session without url", domain.ErrUpstream)
	}
	return ps.URL, nil
}

// upstream keeps the processor's message and hides everything else behind ErrUpstream.
func upstream(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && strings.TrimSpace(se.Msg) != "" {
		return fmt.Errorf("%w: stripe %s: %s", domain.ErrUpstream, op, strings.TrimSpace(se.Msg))
	}
	return fmt.Errorf("%w: stripe %s: %v", domain.ErrUpstream, op, err)
}
