package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"visionchat/internal/logger"
	"visionchat/internal/model"
)

type contextKey struct{}

// Authenticator resolves a bearer token to its user.
type Authenticator interface {
	CurrentUser(ctx context.Context, token string) (*model.User, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// user in the request context. Browsers cannot set headers on websocket
// handshakes, so a "token" query parameter is accepted as well.
func RequireAuth(auth Authenticator, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			user, err := auth.CurrentUser(r.Context(), token)
			if err != nil {
				logger.Warning("Rejected token for %s %s: %v", r.Method, r.URL.Path, err)
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
		})
	}
}

// UserFromContext returns the user stored by RequireAuth, or nil.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(contextKey{}).(*model.User)
	return user
}

// WithUser is used by tests of handlers behind RequireAuth.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"detail": "Could not validate credentials"})
}
