package model

import (
	"time"

	"blogcore/internal/backend"
)

// User is the identity behind the current session. It is never persisted
// locally.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
}

func FromAccount(acc *backend.Account) *User {
	if acc == nil {
		return nil
	}
	return &User{
		ID:            acc.ID,
		Email:         acc.Email,
		Name:          acc.Name,
		EmailVerified: acc.EmailVerified,
		CreatedAt:     acc.CreatedAt,
	}
}

type CreateAccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Token is a short-lived session JWT together with the claims the client
// reads from it.
type Token struct {
	Raw       string    `json:"jwt"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
