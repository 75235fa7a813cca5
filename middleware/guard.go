package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"blogcore/internal/guard"
	"blogcore/store"
)

// StatusReader reports the current authentication status.
type StatusReader interface {
	Status() store.Status
}

// GuardConfig holds the redirect targets used by Guard. Empty fields fall
// back to guard.DefaultLoginPath and guard.DefaultHomePath.
type GuardConfig struct {
	LoginPath  string
	HomePath   string
	RetryAfter int // seconds
}

// Guard gates a route on the auth status. While the status is unknown the
// client gets a 503 placeholder, a redirect decision becomes a 302 and an
// allowed request reaches next.
func Guard(st StatusReader, requireAuth bool, cfg GuardConfig) func(http.Handler) http.Handler {
	if cfg.LoginPath == "" {
		cfg.LoginPath = guard.DefaultLoginPath
	}
	if cfg.HomePath == "" {
		cfg.HomePath = guard.DefaultHomePath
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 1
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, target := guard.Decide(requireAuth, st.Status(), cfg.LoginPath, cfg.HomePath)
			switch state {
			case guard.Allowed:
				next.ServeHTTP(w, r)
			case guard.Redirecting:
				http.Redirect(w, r, target, http.StatusFound)
			default:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(cfg.RetryAfter))
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"state": state.String()})
			}
		})
	}
}
