package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/gosuda/crewdeck/internal/auth"
)

// APIKeyVerifier checks a raw API key and returns the sender identity it was
// issued to. Satisfied by *auth.Keyring.
type APIKeyVerifier interface {
	Verify(rawKey string) (string, error)
}

// Auth authenticates requests by JWT bearer token (UI users) or X-API-Key
// header (crew member processes). Either scheme is accepted; both failing is
// a 401.
func Auth(jwtSecret string, keys APIKeyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Try Bearer token first.
			if tok := extractBearer(r); tok != "" {
				ctx, ok := authenticateJWT(r.Context(), tok, jwtSecret)
				if ok {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			// Try API key.
			if key := r.Header.Get("X-API-Key"); key != "" {
				ctx, ok := authenticateAPIKey(r.Context(), key, keys)
				if ok {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			http.Error(w, `{"title":"Unauthorized","status":401,"detail":"missing or invalid credentials"}`, http.StatusUnauthorized)
		})
	}
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return header[7:]
	}
	return ""
}

func authenticateJWT(ctx context.Context, tokenStr, secret string) (context.Context, bool) {
	claims, err := auth.ValidateToken(secret, tokenStr)
	if err != nil {
		return ctx, false
	}

	workspaceID, err := uuid.Parse(claims.WorkspaceID)
	if err != nil {
		return ctx, false
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return ctx, false
	}

	ctx = context.WithValue(ctx, ContextKeyWorkspaceID, workspaceID)
	ctx = context.WithValue(ctx, ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, ContextKeyUserRole, claims.Role)
	return ctx, true
}

func authenticateAPIKey(ctx context.Context, rawKey string, keys APIKeyVerifier) (context.Context, bool) {
	senderID, err := keys.Verify(rawKey)
	if err != nil {
		return ctx, false
	}

	ctx = context.WithValue(ctx, ContextKeySenderID, senderID)
	ctx = context.WithValue(ctx, ContextKeyUserRole, RoleCrew)
	return ctx, true
}
