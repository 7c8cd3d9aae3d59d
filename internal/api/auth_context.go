package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/roomcraft/visionboard/internal/auth"
)

// TokenVerifier checks bearer tokens. *auth.TokenService implements it.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.AccessClaims, error)
}

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// ownerIDKey is the context key for the authenticated owner ID.
const ownerIDKey ctxKey = "ownerID"

// GetOwnerID returns the authenticated owner ID from context.
// Returns 401 error if the request is not authenticated.
func GetOwnerID(ctx context.Context) (string, error) {
	ownerID, ok := ctx.Value(ownerIDKey).(string)
	if !ok || ownerID == "" {
		return "", huma.Error401Unauthorized("Authentication required")
	}
	return ownerID, nil
}

// ownerFromRequest resolves the owner for handlers outside huma (SSE).
func ownerFromRequest(r *http.Request) (string, bool) {
	ownerID, err := GetOwnerID(r.Context())
	return ownerID, err == nil
}

// setOwnerID stores the owner ID in context.
func setOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// authMiddleware returns a middleware that validates Bearer tokens and stores the owner ID in context.
// If no token is present or invalid, continues without an owner in context.
// Handlers use GetOwnerID to check authentication.
func authMiddleware(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.VerifyAccessToken(token)
			if err != nil {
				// Invalid token - continue without owner (handler will reject if auth required)
				next.ServeHTTP(w, r)
				return
			}

			ctx := setOwnerID(r.Context(), claims.OwnerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
