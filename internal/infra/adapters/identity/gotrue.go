package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/adapter"
)

var _ adapter.IdentityProvider = (*GoTrueProvider)(nil)

// suspendedFor is what the admin API treats as an indefinite ban.
const suspendedFor = "876000h"

// SessionClaims are the access token claims issued by the identity service.
type SessionClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
	UserMetadata  struct {
		EmailVerified bool `json:"email_verified"`
	} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// GoTrueProvider verifies HS256 session tokens locally and calls the GoTrue
// admin REST API with the service key for credential changes.
type GoTrueProvider struct {
	secret     []byte
	base       string
	serviceKey string
	client     *http.Client
}

func NewGoTrueProvider(jwtSecret, baseURL, serviceKey string) (*GoTrueProvider, error) {
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, errors.New("identity: empty jwt secret")
	}
	if baseURL != "" {
		if _, err := url.Parse(baseURL); err != nil {
			return nil, fmt.Errorf("identity: invalid base url: %w", err)
		}
	}
	return &GoTrueProvider{
		secret:     []byte(jwtSecret),
		base:       strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (p *GoTrueProvider) VerifySession(ctx context.Context, token string) (*model.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, domain.ErrUnauthenticated
	}
	verified := claims.UserMetadata.EmailVerified
	if claims.EmailVerified != nil {
		verified = *claims.EmailVerified
	}
	return &model.Identity{
		UserID:        claims.Subject,
		Email:         strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified: verified,
	}, nil
}

// Mint signs a session token. Used by dev tooling and tests.
func (p *GoTrueProvider) Mint(id model.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	v := id.EmailVerified
	claims := SessionClaims{
		Email:         id.Email,
		EmailVerified: &v,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

func (p *GoTrueProvider) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	return p.adminUpdate(ctx, userID, map[string]any{"password": newPassword})
}

func (p *GoTrueProvider) SetAccountSuspended(ctx context.Context, userID string, suspended bool) error {
	d := "none"
	if suspended {
		d = suspendedFor
	}
	return p.adminUpdate(ctx, userID, map[string]any{"ban_duration": d})
}

func (p *GoTrueProvider) DeleteUser(ctx context.Context, userID string) error {
	return p.do(ctx, http.MethodDelete, userID, nil)
}

func (p *GoTrueProvider) adminUpdate(ctx context.Context, userID string, body map[string]any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return p.do(ctx, http.MethodPut, userID, b)
}

func (p *GoTrueProvider) do(ctx context.Context, method, userID string, body []byte) error {
	if p.base == "" || p.serviceKey == "" {
		return fmt.Errorf("%w: identity admin api not configured", domain.ErrUpstream)
	}
	endpoint := p.base + "/auth/v1/admin/users/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("apikey", p.serviceKey)
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: identity: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusUnprocessableEntity:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.NewValidationError("password", errorMessage(msg))
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: identity http %d: %s", domain.ErrUpstream, resp.StatusCode, errorMessage(msg))
	}
	return nil
}

func errorMessage(body []byte) string {
	var e struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Msg != "" {
			return e.Msg
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return strings.TrimSpace(string(body))
}
