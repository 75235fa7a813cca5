package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"blogcore/store"
)

type contextKey string

const UserIDKey contextKey = "userID"

// StateReader is the read side of the auth store.
type StateReader interface {
	State() store.AuthState
}

// AuthMiddleware admits the request only while the store holds an
// authenticated user and puts that user's ID into the request context.
func AuthMiddleware(st StateReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := st.State()
			if state.Status != store.StatusAuthenticated || state.UserData == nil || state.UserData.ID == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":  "Unauthorized: no active session",
					"status": state.Status.String(),
				})
				return
			}

			// Add UserID to context for the next handler
			ctx := context.WithValue(r.Context(), UserIDKey, state.UserData.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the ID stored by AuthMiddleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}
