package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const ctxAccountIDKey contextKey = "account_id"

// TokenValidator resolves a session token to the account it was issued for.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

// RequireAccount authenticates requests by their Bearer session token and puts
// the account id into request context. Requests without a valid token get 401.
func RequireAccount(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"please sign in to continue","requires_auth":true}`, http.StatusUnauthorized)
				return
			}
			id, err := tokens.ValidateToken(r.Context(), raw)
			if err != nil || id == uuid.Nil {
				http.Error(w, `{"error":"invalid or expired session","requires_auth":true}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), id)))
		})
	}
}

// AccountIDFromCtx returns the authenticated account id, or uuid.Nil.
func AccountIDFromCtx(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxAccountIDKey).(uuid.UUID)
	return id
}

// WithAccountID returns a context carrying the given account id.
func WithAccountID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxAccountIDKey, id)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
