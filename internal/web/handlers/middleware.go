package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/escaladev/escala/internal/roles"
	"github.com/escaladev/escala/internal/token"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// claimsContextKey stores the validated session claims in request context.
const claimsContextKey contextKey = "claims"

// SessionMiddleware requires a valid Bearer session token and injects
// its claims into the request context.
func SessionMiddleware(tokens *token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "AUTH", "missing session token")
				return
			}

			claims, err := tokens.Validate(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "invalid session token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminMiddleware requires the administrative view (manager level).
// MUST be used after SessionMiddleware.
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || !roles.IsManager(claims.Level) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "manager level required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClaimsFromContext extracts the session claims from request context.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*token.Claims)
	return claims, ok
}
