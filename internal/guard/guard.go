// Package guard gates access on the authentication status. A Guard moves
// between Loading, Allowed and Redirecting and fires its navigation side
// effect once for every transition into Redirecting.
package guard

import (
	"context"
	"sync"

	"blogcore/pkg/logger"
	"blogcore/store"
)

type State int

const (
	Loading State = iota
	Allowed
	Redirecting
)

func (s State) String() string {
	switch s {
	case Allowed:
		return "allowed"
	case Redirecting:
		return "redirecting"
	default:
		return "loading"
	}
}

const (
	DefaultLoginPath = "/login"
	DefaultHomePath  = "/"
)

// Navigator performs the redirect side effect.
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(target string)

func (f NavigatorFunc) Navigate(target string) { f(target) }

// Source is the read side of the auth store.
type Source interface {
	Subscribe() (<-chan store.AuthState, func())
}

// Decide applies the transition table. Unknown status always means Loading.
func Decide(requireAuth bool, status store.Status, loginPath, homePath string) (State, string) {
	switch {
	case status == store.StatusUnknown:
		return Loading, ""
	case requireAuth && status == store.StatusAuthenticated:
		return Allowed, ""
	case requireAuth:
		return Redirecting, loginPath
	case status == store.StatusUnauthenticated:
		return Allowed, ""
	default:
		return Redirecting, homePath
	}
}

type Guard struct {
	mu          sync.Mutex
	nav         Navigator
	requireAuth bool
	loginPath   string
	homePath    string

	status store.Status
	state  State
	target string
}

type Option func(*Guard)

// RequireAuth selects between a protected route (true, the default) and a
// guest-only route such as the login page.
func RequireAuth(require bool) Option {
	return func(g *Guard) { g.requireAuth = require }
}

func WithLoginPath(path string) Option {
	return func(g *Guard) { g.loginPath = path }
}

func WithHomePath(path string) Option {
	return func(g *Guard) { g.homePath = path }
}

// New creates a guard in Loading.
func New(nav Navigator, opts ...Option) *Guard {
	g := &Guard{
		nav:         nav,
		requireAuth: true,
		loginPath:   DefaultLoginPath,
		homePath:    DefaultHomePath,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns the current state and, when redirecting, its target.
func (g *Guard) State() (State, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, g.target
}

// Evaluate feeds a new status into the guard.
func (g *Guard) Evaluate(status store.Status) State {
	g.mu.Lock()
	g.status = status
	return g.reevaluateLocked()
}

// SetRequireAuth changes the guard's mode and re-evaluates.
func (g *Guard) SetRequireAuth(require bool) State {
	g.mu.Lock()
	g.requireAuth = require
	return g.reevaluateLocked()
}

// SetTargets changes the redirect targets and re-evaluates. Empty values
// keep the current target.
func (g *Guard) SetTargets(loginPath, homePath string) State {
	g.mu.Lock()
	if loginPath != "" {
		g.loginPath = loginPath
	}
	if homePath != "" {
		g.homePath = homePath
	}
	return g.reevaluateLocked()
}

// reevaluateLocked must be called with g.mu held; it releases it before
// navigating so a Navigator may call back into the guard.
func (g *Guard) reevaluateLocked() State {
	next, target := Decide(g.requireAuth, g.status, g.loginPath, g.homePath)
	navigate := next == Redirecting && (g.state != Redirecting || g.target != target)
	g.state, g.target = next, target
	nav := g.nav
	g.mu.Unlock()

	if navigate && nav != nil {
		logger.Sugar.Debugf("Guard redirecting to %s", target)
		nav.Navigate(target)
	}
	return next
}

// Run evaluates every state published by src until ctx is done or the
// subscription closes.
func (g *Guard) Run(ctx context.Context, src Source) error {
	ch, unsubscribe := src.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-ch:
			if !ok {
				return nil
			}
			g.Evaluate(st.Status)
		}
	}
}
