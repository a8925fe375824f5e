package payment

import (
	"context"
	"fmt"
	"sync"

	"ai-chat-subscription/internal/domain/ports/adapter"
)

var _ adapter.BillingGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for dev mode and tests.
type NoopPaymentGateway struct {
	mu        sync.Mutex
	seq       int64
	Customers map[string]string // customer ref -> user id
	Checkouts []adapter.CheckoutRequest
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{Customers: make(map[string]string)}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_noop_%d", prefix, g.seq)
}

func (g *NoopPaymentGateway) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ref := g.next("cus")
	g.Customers[ref] = userID
	return ref, nil
}

func (g *NoopPaymentGateway) CreateCheckoutSession(ctx context.Context, req adapter.CheckoutRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Checkouts = append(g.Checkouts, req)
	return "https://example.test/checkout/" + g.next("cs"), nil
}

func (g *NoopPaymentGateway) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error) {
	return "https://example.test/portal/" + customerRef, nil
}
