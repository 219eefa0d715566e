package middleware

import (
	"context"
	"net/http"

	"peerprep/interview/internal/utils"
)

type contextKey string

const callerIDKey contextKey = "caller_id"

// RequireAuth rejects requests without a valid bearer token and stores the
// token's subject as the caller id for the handlers behind it.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := utils.VerifyToken(r, secret)
			if err != nil {
				utils.JSONKindError(w, http.StatusUnauthorized, err.Error(), "unauthenticated")
				return
			}
			userID, err := utils.GetUserIDFromClaims(claims)
			if err != nil {
				utils.JSONKindError(w, http.StatusUnauthorized, err.Error(), "unauthenticated")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCallerID(r.Context(), userID)))
		})
	}
}

func WithCallerID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerIDKey, userID)
}

// CallerID returns the authenticated user id, or "" outside RequireAuth.
func CallerID(r *http.Request) string {
	id, _ := r.Context().Value(callerIDKey).(string)
	return id
}
