package handler

import (
	"net/http"

	handlers "blogcore/handler"
	"blogcore/internal/boot"
	"blogcore/internal/session/model"
	"blogcore/internal/session/service"
	"blogcore/store"
)

// AuthStore is the part of the auth store the session endpoints touch.
type AuthStore interface {
	boot.Dispatcher
	State() store.AuthState
}

type SessionHandler struct {
	Gateway service.Gateway
	Store   AuthStore
}

func NewSessionHandler(gw service.Gateway, st AuthStore) *SessionHandler {
	return &SessionHandler{Gateway: gw, Store: st}
}

func (h *SessionHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAccountRequest
	if !handlers.DecodeJSON(w, r, &req) {
		return
	}

	user, err := boot.SignUp(r.Context(), h.Gateway, h.Store, req)
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, user)
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !handlers.DecodeJSON(w, r, &req) {
		return
	}

	user, err := boot.SignIn(r.Context(), h.Gateway, h.Store, req)
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, user)
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := boot.SignOut(r.Context(), h.Gateway, h.Store); err != nil {
		handlers.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the logged-in user. It is mounted behind a guard, so the store
// is normally authenticated here.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	state := h.Store.State()
	if state.UserData == nil {
		handlers.WriteJSON(w, http.StatusUnauthorized, handlers.ErrorResponse{Error: "no active session", Kind: "unauthorized"})
		return
	}
	handlers.WriteJSON(w, http.StatusOK, state.UserData)
}

// State reports the auth state as-is. Mounted guest-only on /login it tells
// a client it may show the login form.
func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, h.Store.State())
}
