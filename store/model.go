package store

import (
	"fmt"

	"blogcore/internal/session/model"
)

// Status is the process-wide authentication status.
type Status int

const (
	// StatusUnknown holds until the boot sequence has resolved the session.
	StatusUnknown Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "unknown":
		*s = StatusUnknown
	case "authenticated":
		*s = StatusAuthenticated
	case "unauthenticated":
		*s = StatusUnauthenticated
	default:
		return fmt.Errorf("unknown auth status %q", b)
	}
	return nil
}

// AuthState is a snapshot of the store. UserData is non-nil exactly when
// Status is StatusAuthenticated.
type AuthState struct {
	Status   Status      `json:"status"`
	UserData *model.User `json:"user_data"`
}
