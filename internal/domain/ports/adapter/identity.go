package adapter

import (
	"context"

	"ai-chat-subscription/internal/domain/model"
)

// IdentityProvider is the external authentication service. It issues the
// sessions consumed here and owns credentials.
type IdentityProvider interface {
	// VerifySession validates an access token and returns the identity it carries.
	VerifySession(ctx context.Context, token string) (*model.Identity, error)
	UpdatePassword(ctx context.Context, userID, newPassword string) error
	SetAccountSuspended(ctx context.Context, userID string, suspended bool) error
	DeleteUser(ctx context.Context, userID string) error
}
