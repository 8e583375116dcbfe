package httpapi

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const userIDKey ctxKey = 0

// requireAuth verifies the bearer token and stashes the caller's user
// id in the request context for downstream handlers.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			renderError(w, unauthenticated("missing bearer token"))
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		userID, err := a.Auth.Verify(token)
		if err != nil {
			renderError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}

func userIDFrom(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}
