package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/tokenguard"
)

// DefaultBearerPrefix is used when Gate is given an empty prefix.
const DefaultBearerPrefix = "Bearer "

// Validator is the part of tokenguard.Engine the gate needs.
type Validator interface {
	Validate(ctx context.Context, token string) (*tokenguard.Identity, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by Gate.
func IdentityFromContext(ctx context.Context) (*tokenguard.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*tokenguard.Identity)
	return id, ok && id != nil
}

// WithIdentity stores id in ctx the way Gate does.
func WithIdentity(ctx context.Context, id *tokenguard.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Gate validates the Authorization header when present. A header without
// prefix, an invalid or revoked token, or a failed blacklist check all
// produce 401.
func Gate(v Validator, prefix string) func(http.Handler) http.Handler {
	if prefix == "" {
		prefix = DefaultBearerPrefix
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(header, prefix)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			id, err := v.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRoles admits requests whose identity has at least one of roles.
// Role names are compared with tokenguard.NormalizeRole.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if id.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

// BearerToken strips prefix from an Authorization header value.
func BearerToken(value, prefix string) (string, bool) {
	if prefix == "" {
		prefix = DefaultBearerPrefix
	}
	if !strings.HasPrefix(value, prefix) {
		return "", false
	}

	token := strings.TrimSpace(value[len(prefix):])
	if token == "" {
		return "", false
	}

	return token, true
}
