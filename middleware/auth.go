package middleware

import (
	"context"
	"net/http"
	"strings"

	"mycase-designer/handlers/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type contextKey string

const ClaimsContextKey = contextKey("claims")

// AuthSession requires a bearer token issued for the session named by the
// {id} URL parameter.
func AuthSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ParseToken(parts[1])
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Invalid token"})
			return
		}
		if id := chi.URLParam(r, "id"); id != "" && id != claims.Subject {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "Token does not grant access to this session"})
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Claims returns the verified claims stored by AuthSession.
func Claims(r *http.Request) (*auth.SessionClaims, bool) {
	claims, ok := r.Context().Value(ClaimsContextKey).(*auth.SessionClaims)
	return claims, ok
}
