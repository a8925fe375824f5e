package adapter

import "context"

// CheckoutRequest describes a hosted checkout for one subscription price.
type CheckoutRequest struct {
	CustomerRef string
	PriceRef    string
	SuccessURL  string
	CancelURL   string
	// Metadata is echoed back on the checkout.session.completed event.
	Metadata map[string]string
}

// BillingGateway is the hex port for the payment processor's REST API.
type BillingGateway interface {
	Name() string
	// CreateCustomer registers a customer and returns the processor's id.
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	// CreateCheckoutSession returns the hosted checkout URL.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
	// CreatePortalSession returns the billing portal URL for a customer.
	CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error)
}

// WebhookVerifier authenticates a raw webhook body against its signature header.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string) error
}
