package usecase

import (
	"context"

	"ai-chat-subscription/internal/domain/model"
)

// SubscriptionGate is the access check consulted by components that serve
// paid features, like the chat session store and the account page.
type SubscriptionGate interface {
	Check(ctx context.Context, userID string) (model.GateDecision, error)
	// Require returns a *domain.GateError when access is denied.
	Require(ctx context.Context, userID string) error
}
