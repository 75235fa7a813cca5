package handlers

import (
	"net/http"

	"blogcore/store"
)

// StatusReader reports the current authentication status.
type StatusReader interface {
	Status() store.Status
}

type HealthResponse struct {
	Status string `json:"status"`
	Auth   string `json:"auth"`
}

// Health reports liveness together with the auth status, so callers can
// tell whether the boot sequence has finished.
func Health(st StatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Auth: st.Status().String()})
	}
}
