package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"finance/internal/apperror"
	"finance/internal/core"
	"finance/internal/ports"
)

type contextKey struct{}

// Middleware rejects requests without a valid bearer token for an existing
// user. Handlers behind it can rely on FromContext.
func Middleware(tokens *Tokens, users ports.UserReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				apperror.Write(w, r, apperror.Unauthorized(ErrMissingToken.Error()))
				return
			}

			userID, err := tokens.Verify(raw)
			if err != nil {
				slog.WarnContext(ctx, "Rejected bearer token", "error", err)
				apperror.Write(w, r, apperror.Unauthorized(ErrInvalidToken.Error()))
				return
			}

			user, err := users.FindUser(ctx, userID)
			if err != nil {
				apperror.Write(w, r, err)
				return
			}
			if user == nil {
				slog.WarnContext(ctx, "Token subject has no user", "user_id", userID)
				apperror.Write(w, r, apperror.Unauthorized(core.ErrUserNotFound.Error()))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(ctx, *user)))
		})
	}
}

func WithUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

func FromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(contextKey{}).(core.User)
	return u, ok
}

func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
