package httpapi

import (
	"net/http"
	"strings"

	"rentchain.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Browse and bootstrap endpoints stay public; everything else needs a token
// once RENTCHAIN_AUTH_SECRET is set.
var publicPaths = []string{
	"/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/v1/events",
	"/v1/users/register",
	"/v1/users/login",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if !auth.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := extractBearerToken(r.Header.Get(authHeader))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": errorBody{
				Code:       "UNAUTHORIZED",
				Message:    "missing bearer token",
				StatusCode: http.StatusUnauthorized,
			}})
			return
		}

		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": errorBody{
				Code:       "UNAUTHORIZED",
				Message:    "invalid token",
				StatusCode: http.StatusUnauthorized,
			}})
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": errorBody{
				Code:       "UNAUTHORIZED",
				Message:    "invalid token subject",
				StatusCode: http.StatusUnauthorized,
			}})
			return
		}

		ctx := auth.ContextWithUser(r.Context(), userID, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isPublicRequest(r *http.Request) bool {
	for _, p := range publicPaths {
		if r.URL.Path == p {
			return true
		}
	}
	// Listings are browsable without an account.
	if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/properties") {
		return true
	}
	return false
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearer) {
		return "", false
	}
	if !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearer):])
	return token, token != ""
}
