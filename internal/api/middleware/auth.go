package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dhruvsahu007/slackai/internal/models"
	"github.com/dhruvsahu007/slackai/internal/store"
)

type contextKey string

const UserContextKey contextKey = "user"

// AuthMiddleware resolves Bearer API keys to users for authenticated
// endpoints.
type AuthMiddleware struct {
	store store.MessageStore
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(s store.MessageStore) *AuthMiddleware {
	return &AuthMiddleware{store: s}
}

// RequireAuth verifies the Authorization header and puts the resolved user on
// the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			jsonError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		apiKey, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || apiKey == "" {
			jsonError(w, http.StatusUnauthorized, "authorization must be a bearer token")
			return
		}

		user, err := m.store.GetUserByAPIKey(r.Context(), apiKey)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "auth lookup failed")
			return
		}
		if user == nil {
			jsonError(w, http.StatusUnauthorized, "invalid api key")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetUserFromContext retrieves the authenticated user from the request context.
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
