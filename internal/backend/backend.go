// Package backend defines the narrow capability sets the application needs
// from its remote backend: accounts and sessions, keyed document storage with
// query filtering, and blob storage. Concrete adapters live in the remote,
// memory and postgres subpackages and are chosen once at the composition root.
package backend

import (
	"context"
	"time"
)

// Account is an identity resolved by the backend.
type Account struct {
	ID            string
	Email         string
	Name          string
	EmailVerified bool
	CreatedAt     time.Time
}

// SessionInfo describes a session created by a successful login.
type SessionInfo struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// Accounts covers identity and session operations. Session state (cookie or
// token) is held by the adapter, so Get and DeleteSessions act on "the current
// session".
type Accounts interface {
	Create(ctx context.Context, id, email, password, name string) (*Account, error)
	CreateEmailSession(ctx context.Context, email, password string) (*SessionInfo, error)
	Get(ctx context.Context) (*Account, error)
	// DeleteSessions ends every session of the current identity, not just
	// the one held by this process.
	DeleteSessions(ctx context.Context) error
	CreateJWT(ctx context.Context) (string, error)
}

// Document is a record addressed by a caller-chosen immutable ID.
type Document struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Data      map[string]any
}

// DocumentList is one page of a list call. Total counts every match, not
// just this page.
type DocumentList struct {
	Total     int
	Documents []Document
}

// Documents covers keyed document storage for one configured collection.
type Documents interface {
	Create(ctx context.Context, id string, data map[string]any) (*Document, error)
	// Update merges data into the stored document.
	Update(ctx context.Context, id string, data map[string]any) (*Document, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Document, error)
	// List returns documents matching every query, ordered by creation.
	List(ctx context.Context, queries []Query) (*DocumentList, error)
}

// FileRef is an opaque handle to a stored blob.
type FileRef string

// Files covers blob storage in the configured bucket.
type Files interface {
	Upload(ctx context.Context, id, name string, data []byte) (FileRef, error)
	Delete(ctx context.Context, ref FileRef) error
	// PreviewURL derives a display URL from the ref and the immutable
	// backend configuration. It performs no I/O.
	PreviewURL(ref FileRef) string
}
