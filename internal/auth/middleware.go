package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/secretum/internal/apperror"
)

// TokenHeader carries the session token on authenticated requests.
const TokenHeader = "X-Auth-Token"

// contextKey is unexported so no other package can read or overwrite the
// identity stored by RequireAuth.
type contextKey string

const identityKey contextKey = "identity"

// RequireAuth rejects requests without a valid session token and stores the
// verified Identity in the request context for the handlers behind it.
//
// A missing header answers 401 auth_missing; any token that fails Verify
// answers 401 auth_invalid.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(TokenHeader))
			if raw == "" {
				writeAuthError(w, apperror.AuthMissing())
				return
			}

			id, err := tokens.Verify(raw)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id. Handlers' tests use it to
// skip the middleware.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity RequireAuth verified, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// UserIDFromContext is a shorthand for IdentityFromContext(ctx).UserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.UserID, ok
}

// writeAuthError answers in the same {"error","message"} shape the handlers use.
func writeAuthError(w http.ResponseWriter, err error) {
	code := "auth_invalid"
	if errors.Is(err, apperror.ErrAuthMissing) {
		code = "auth_missing"
	}
	message := apperror.AuthInvalid().Message
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
