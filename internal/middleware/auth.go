package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"pointsledger/internal/auth"
)

type contextKey string

const userIDKey contextKey = "user_id"

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// With allowQuery a ?token= parameter is accepted first, for browser websocket clients.
func BearerToken(r *http.Request, allowQuery bool) string {
	if allowQuery {
		if token := r.URL.Query().Get("token"); token != "" {
			return token
		}
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Auth rejects requests without a valid token and puts the caller's user id in the context.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r, false)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing_token")
				return
			}
			claims, err := auth.ParseToken(secret, token)
			if errors.Is(err, auth.ErrExpiredToken) {
				writeError(w, http.StatusUnauthorized, "token_expired")
				return
			}
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}
