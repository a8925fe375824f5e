package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
)

const testSecret = "test-identity-jwt-secret-please-change"

func TestVerifySession(t *testing.T) {
	p, err := NewGoTrueProvider(testSecret, "", "")
	if err != nil {
		t.Fatalf("NewGoTrueProvider: unexpected error: %v", err)
	}
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		tok, _ := p.Mint(model.Identity{UserID: "u1", Email: "Ana@Example.com", EmailVerified: true}, time.Minute)
		id, err := p.VerifySession(ctx, tok)
		if err != nil {
			t.Fatalf("VerifySession: unexpected error: %v", err)
		}
		if id.UserID != "u1" || id.Email != "ana@example.com" || !id.EmailVerified {
			t.Fatalf("unexpected identity %+v", id)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		tok, _ := p.Mint(model.Identity{UserID: "u1"}, -time.Minute)
		if _, err := p.VerifySession(ctx, tok); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, _ := NewGoTrueProvider("another-secret", "", "")
		tok, _ := other.Mint(model.Identity{UserID: "u1"}, time.Minute)
		if _, err := p.VerifySession(ctx, tok); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("metadata verification flag", func(t *testing.T) {
		claims := SessionClaims{Email: "b@c.d"}
		claims.UserMetadata.EmailVerified = true
		claims.Subject = "u2"
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
		tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		id, err := p.VerifySession(ctx, tok)
		if err != nil || !id.EmailVerified {
			t.Fatalf("expected verified identity, got %+v %v", id, err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		for _, tok := range []string{"", "invalid.jwt.token"} {
			if _, err := p.VerifySession(ctx, tok); !errors.Is(err, domain.ErrUnauthenticated) {
				t.Fatalf("token %q: expected ErrUnauthenticated, got %v", tok, err)
			}
		}
	})
}

func TestAdminAPI(t *testing.T) {
	type call struct {
		method, path string
		body         map[string]any
	}
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "svc" || r.Header.Get("Authorization") != "Bearer svc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		c := call{method: r.Method, path: r.URL.Path}
		_ = json.NewDecoder(r.Body).Decode(&c.body)
		calls = append(calls, c)
		if r.URL.Path == "/auth/v1/admin/users/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p, _ := NewGoTrueProvider(testSecret, srv.URL, "svc")
	ctx := context.Background()

	if err := p.UpdatePassword(ctx, "u1", "s3cret!"); err != nil {
		t.Fatalf("UpdatePassword: unexpected error: %v", err)
	}
	if err := p.SetAccountSuspended(ctx, "u1", true); err != nil {
		t.Fatalf("SetAccountSuspended: unexpected error: %v", err)
	}
	if err := p.SetAccountSuspended(ctx, "u1", false); err != nil {
		t.Fatalf("SetAccountSuspended: unexpected error: %v", err)
	}
	if err := p.DeleteUser(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if len(calls) != 4 {
		t.Fatalf("expected 4 calls, got %d", len(calls))
	}
	if calls[0].method != http.MethodPut || calls[0].body["password"] != "s3cret!" {
		t.Fatalf("unexpected password call %+v", calls[0])
	}
	if calls[1].body["ban_duration"] != suspendedFor || calls[2].body["ban_duration"] != "none" {
		t.Fatalf("unexpected ban calls %+v %+v", calls[1], calls[2])
	}
	if calls[3].method != http.MethodDelete {
		t.Fatalf("expected DELETE, got %s", calls[3].method)
	}

	unconfigured, _ := NewGoTrueProvider(testSecret, "", "")
	if err := unconfigured.UpdatePassword(ctx, "u1", "x"); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestAdminAPI_HonoursContext(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, _ := NewGoTrueProvider(testSecret, srv.URL, "svc")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.SetAccountSuspended(ctx, "u1", true); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream for a cancelled request, got %v", err)
	}
	if err := p.DeleteUser(ctx, "u1"); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream for a cancelled request, got %v", err)
	}
	if hits != 0 {
		t.Fatalf("cancelled requests must not reach the identity service, got %d", hits)
	}
}

func TestAdminAPI_RejectedPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"msg":"Password should be at least 6 characters"}`))
	}))
	defer srv.Close()

	p, _ := NewGoTrueProvider(testSecret, srv.URL, "svc")
	err := p.UpdatePassword(context.Background(), "u1", "x")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "password" || ve.Msg != "Password should be at least 6 characters" {
		t.Fatalf("expected a password validation error, got %v", err)
	}
}
