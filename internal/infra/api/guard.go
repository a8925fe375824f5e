package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/adapter"
	"ai-chat-subscription/internal/infra/logging"
	"ai-chat-subscription/internal/infra/metrics"
)

// Middleware matches chi's middleware signature.
type Middleware func(http.Handler) http.Handler

const requestIDHeader = "X-Request-ID"

// TraceID reuses an incoming X-Request-ID or mints one and echoes it back.
func TraceID(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if tid == "" || len(tid) > 64 {
				tid = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, tid)
			ctx := logging.WithTraceID(r.Context(), tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLog logs every request and records it under its chi route pattern.
func RequestLog(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(ww, r)

			route := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			elapsed := time.Since(start)
			metrics.ObserveHTTP(route, r.Method, ww.status, elapsed.Milliseconds())

			l := logging.With(r.Context(), logger)
			ev := l.Info()
			if ww.status >= 500 {
				ev = l.Error()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.status).
				Dur("duration", elapsed).
				Msg("http_request")
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func Recover(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					l := logging.With(r.Context(), logger)
					l.Error().Interface("panic", rec).Msg("panic recovered")
					writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type identityKey struct{}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(ctx context.Context) *model.Identity {
	id, _ := ctx.Value(identityKey{}).(*model.Identity)
	return id
}

// Authenticate accepts a bearer token or the session cookie and verifies it
// with the identity provider.
func Authenticate(idp adapter.IdentityProvider, cookieName string, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r, cookieName)
			if token == "" {
				writeError(w, r, logger, domain.ErrUnauthenticated)
				return
			}
			id, err := idp.VerifySession(r.Context(), token)
			if err != nil || id == nil || id.UserID == "" {
				if err == nil {
					err = domain.ErrUnauthenticated
				}
				logging.With(r.Context(), logger).Debug().Err(err).Msg("session rejected")
				writeError(w, r, logger, domain.ErrUnauthenticated)
				return
			}
			ctx := context.WithValue(r.Context(), identityKey{}, id)
			ctx = logging.WithUserID(ctx, id.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request, cookieName string) string {
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
			return strings.TrimSpace(hdr[7:])
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

// Authorizer decides whether an authenticated identity may operate the admin area.
type Authorizer interface {
	Authorize(identity *model.Identity) error
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(authz Authorizer, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authz.Authorize(IdentityFrom(r.Context())); err != nil {
				writeError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
