package middleware

import (
	"net/http"
	"strings"

	"marketbrief/internal/auth"
	"marketbrief/internal/httputil"
)

// publicPaths are served without a session token. The webhook authenticates
// its callers itself (shared secret + pass-through user token).
var publicPaths = []string{
	"/webhook",
	"/health",
	"/metrics",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// AuthMiddleware verifies the Authorization bearer token on REST routes and
// stores the resolved user id in the request context.
func AuthMiddleware(verifier auth.SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, httputil.WithUserID(r, claims.GetUserID()))
		})
	}
}
