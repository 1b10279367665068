package chi

import (
	"context"
	"net/http"
	"strings"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type adminKey struct{}

// isAdmin reports whether the request was authenticated with an admin key.
func isAdmin(ctx context.Context) bool {
	v, _ := ctx.Value(adminKey{}).(bool)
	return v
}

// BearerAuthMiddleware returns a middleware that validates Bearer tokens
// against apiKeys and adminKeys. Admin keys are valid everywhere.
// If both lists are empty, authentication is disabled (pass-through) and
// every caller is treated as an admin.
func BearerAuthMiddleware(apiKeys, adminKeys []string) func(http.Handler) http.Handler {
	keys := make(map[string]bool, len(apiKeys)+len(adminKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = false
		}
	}
	admins := 0
	for _, k := range adminKeys {
		if k != "" {
			keys[k] = true
			admins++
		}
	}

	return func(next http.Handler) http.Handler {
		// Auth disabled: pass everything through
		if len(keys) == 0 {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey{}, true)))
			})
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			token := auth[len(bearerPrefix):]
			admin, ok := keys[token]
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
				return
			}
			// Without dedicated admin keys every valid key may manage the bank.
			if admins == 0 {
				admin = true
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey{}, admin)))
		})
	}
}

// RequireAdmin rejects requests not authenticated with an admin key.
// It must run after BearerAuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, CodeForbidden, "admin key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
