/*
middleware.go - Authentication middleware

PURPOSE:
  Turns a Bearer token into a toil.Actor on the request context. Every
  handler below RequireAuth can assume an authenticated identity; role
  checks live in the service layer, not here.

SEE ALSO:
  - auth/auth.go: Token verification
  - toil/service.go: Actor-based authorization
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/quill/toil-tracker/auth"
	"github.com/quill/toil-tracker/toil"
)

type contextKey string

const actorKey contextKey = "actor"

// RequireAuth verifies the Bearer token and stores the Actor on the
// request context. Missing or invalid tokens get 401.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}

		claims, err := auth.ParseToken(h.JWTSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}

		actor := toil.Actor{ID: claims.UserID, Role: toil.Role(claims.Role)}
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), actorKey, actor)))
	})
}

// RequireAdmin gates admin-only routes. Runs below RequireAuth.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actorFrom(r).Role != toil.RoleAdmin {
			writeError(w, http.StatusForbidden, "Admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// actorFrom returns the Actor stored by RequireAuth. Zero value if the
// middleware did not run; routes outside RequireAuth must not call it.
func actorFrom(r *http.Request) toil.Actor {
	actor, _ := r.Context().Value(actorKey).(toil.Actor)
	return actor
}
