package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/contactbook/internal/common"
	"github.com/dmitrijs2005/contactbook/internal/server/models"
)

type contextKey string

// userContextKey carries the authenticated *models.User through the request.
const userContextKey contextKey = "user"

// userFromContext returns the authenticated user stored by authMiddleware.
func userFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}

// authMiddleware resolves the bearer access token to an account and stores it
// in the request context. Requests without a valid token get 401 without
// reaching the handler.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		token, ok := bearerToken(header)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		user, err := s.authService.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken splits "Bearer <token>" case-insensitively on the scheme.
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// adminOnly gates a handler on the admin role.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if err := s.authService.RequireRole(user, models.RoleAdmin); err != nil {
			writeError(w, http.StatusForbidden, "Operation forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
