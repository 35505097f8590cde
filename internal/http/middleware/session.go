package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/diagnosis/rsvp-events/internal/domain"
	"github.com/diagnosis/rsvp-events/internal/http/response"
	"github.com/diagnosis/rsvp-events/pkg/auth"
	"github.com/diagnosis/rsvp-events/pkg/logger"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// SessionAuth is the part of the auth service the session middleware needs.
type SessionAuth interface {
	ParseSession(token string) (*auth.Claims, error)
	EnsureUser(ctx context.Context, claims *auth.Claims) (*domain.User, error)
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return ""
}

func withClaims(r *http.Request, claims *auth.Claims) *http.Request {
	ctx := context.WithValue(r.Context(), CtxClaims, claims)
	ctx = logger.WithUserID(ctx, claims.UserID())
	return r.WithContext(ctx)
}

// RequireSession rejects requests without a valid bearer session and makes
// sure the session's user row exists before the handler runs.
func RequireSession(a SessionAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				response.Unauthorized(w, "authentication required")
				return
			}
			claims, err := a.ParseSession(raw)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid session token", response.CodeInvalidToken)
				return
			}
			r = withClaims(r, claims)
			if _, err := a.EnsureUser(r.Context(), claims); err != nil {
				response.FromError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OptionalSession attaches the session when a valid one is presented and
// otherwise lets the request through anonymously.
func OptionalSession(a SessionAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := bearerToken(r); raw != "" {
				if claims, err := a.ParseSession(raw); err == nil {
					r = withClaims(r, claims)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func Claims(r *http.Request) *auth.Claims {
	if v := r.Context().Value(CtxClaims); v != nil {
		if c, ok := v.(*auth.Claims); ok {
			return c
		}
	}
	return nil
}

// UserID is the session user id, or "" for anonymous requests.
func UserID(r *http.Request) string {
	if c := Claims(r); c != nil {
		return c.UserID()
	}
	return ""
}

// Credential collects the session and the event token (?token= or
// X-Event-Token) presented with r.
func Credential(r *http.Request) domain.Credential {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Event-Token"))
	}
	return domain.Credential{UserID: UserID(r), Token: token}
}
