package middleware

import (
	"net/http"
	"strings"

	"github.com/hwpark/chatbot/backend/internal/auth"
	"github.com/hwpark/chatbot/backend/internal/store"
	"github.com/hwpark/chatbot/backend/pkg/utils"
)

// Auth resolves the bearer token into a user and attaches it to the
// request context. WebSocket clients cannot set headers, so a token query
// parameter is accepted as a fallback.
func Auth(tokens *auth.TokenProvider, users store.Users) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				utils.RespondError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			email, err := tokens.Parse(raw)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			usr, err := users.FindByEmail(r.Context(), email)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "unknown account")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), usr)))
		})
	}
}

// RequireAdmin rejects non-admin users. Must run after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		usr, ok := auth.CurrentUser(r.Context())
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !usr.IsAdmin() {
			utils.RespondError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
