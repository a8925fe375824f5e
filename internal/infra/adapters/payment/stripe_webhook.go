package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81/webhook"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/ports/adapter"
)

var _ adapter.WebhookVerifier = (*StripeWebhookVerifier)(nil)

// StripeWebhookVerifier checks the Stripe-Signature header against the
// endpoint secret. A zero tolerance skips the timestamp check.
type StripeWebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewStripeWebhookVerifier(secret string, tolerance time.Duration) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{secret: strings.TrimSpace(secret), tolerance: tolerance}
}

// Verify only authenticates the body. Event decoding stays with the webhook
// use case, so API version drift between account and library is not an error here.
func (v *StripeWebhookVerifier) Verify(payload []byte, header string) error {
	if v.secret == "" {
		return fmt.Errorf("%w: webhook secret not configured", domain.ErrInvalidSignature)
	}
	var err error
	if v.tolerance > 0 {
		err = webhook.ValidatePayloadWithTolerance(payload, header, v.secret, v.tolerance)
	} else {
		err = webhook.ValidatePayloadIgnoringTolerance(payload, header, v.secret)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return nil
}
