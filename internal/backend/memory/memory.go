// Package memory is an in-process backend used by tests and for offline
// development. It follows the hosted backend's observable rules closely
// enough that gateway behaviour can be exercised without a network.
package memory

import (
	"sync/atomic"
	"time"

	"blogcore/internal/backend"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultPageSize = 25
	defaultJWTTTL   = 15 * time.Minute
	defaultSession  = 365 * 24 * time.Hour
)

// Backend bundles the three capability sets over shared state.
type Backend struct {
	Accounts  *Accounts
	Documents *Documents
	Files     *Files

	offline *atomic.Bool
}

type options struct {
	signingKey   []byte
	previewBase  string
	jwtTTL       time.Duration
	passwordCost int
	now          func() time.Time
}

// Option configures a Backend.
type Option func(*options)

// WithSigningKey sets the HMAC key used for issued JWTs.
func WithSigningKey(key []byte) Option {
	return func(o *options) { o.signingKey = key }
}

// WithPreviewBase sets the base URL that preview URLs are derived from.
func WithPreviewBase(base string) Option {
	return func(o *options) { o.previewBase = base }
}

// WithJWTTTL sets the lifetime of issued JWTs.
func WithJWTTTL(ttl time.Duration) Option {
	return func(o *options) { o.jwtTTL = ttl }
}

// WithPasswordCost sets the bcrypt cost for stored passwords.
func WithPasswordCost(cost int) Option {
	return func(o *options) { o.passwordCost = cost }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates an empty backend.
func New(opts ...Option) *Backend {
	o := options{
		signingKey:   []byte("memory-backend"),
		previewBase:  "memory://files",
		jwtTTL:       defaultJWTTTL,
		passwordCost: bcrypt.MinCost,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	offline := &atomic.Bool{}
	return &Backend{
		Accounts:  newAccounts(o, offline),
		Documents: newDocuments(o, offline),
		Files:     newFiles(o, offline),
		offline:   offline,
	}
}

// SetOffline makes every subsequent call fail with backend.KindNetwork until
// it is switched back. PreviewURL is unaffected.
func (b *Backend) SetOffline(offline bool) {
	b.offline.Store(offline)
}

func checkOnline(offline *atomic.Bool, op string) error {
	if offline.Load() {
		return backend.Errorf(backend.KindNetwork, op, "backend unreachable")
	}
	return nil
}
