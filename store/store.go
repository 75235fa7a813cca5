// Package store holds the single source of truth for who is logged in.
// It is mutated only by Login and Logout; everything else reads it.
package store

import (
	"sync"

	"blogcore/internal/session/model"
	"blogcore/pkg/logger"
)

type Store struct {
	mu    sync.RWMutex
	state AuthState
	subs  map[chan AuthState]struct{}
}

// New returns a store in StatusUnknown.
func New() *Store {
	return &Store{subs: make(map[chan AuthState]struct{})}
}

// Login records user as the authenticated identity.
func (s *Store) Login(user model.User) {
	s.set(AuthState{Status: StatusAuthenticated, UserData: &user})
}

// Logout clears the identity.
func (s *Store) Logout() {
	s.set(AuthState{Status: StatusUnauthenticated})
}

// State returns a snapshot. The returned UserData is a copy.
func (s *Store) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Status
}

// Subscribe returns a channel that yields the current state immediately and
// then every later change. A slow reader may miss intermediate states but
// always ends up with the newest one. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (s *Store) Subscribe() (<-chan AuthState, func()) {
	ch := make(chan AuthState, 1)

	s.mu.Lock()
	ch <- s.state.clone()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) set(next AuthState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state.Status
	s.state = next
	for ch := range s.subs {
		offer(ch, next.clone())
	}
	logger.Sugar.Debugf("Auth state %s -> %s", prev, next.Status)
}

// offer replaces whatever the subscriber has not read yet with state.
func offer(ch chan AuthState, state AuthState) {
	select {
	case ch <- state:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- state:
	default:
		logger.Sugar.Warnf("Dropped auth state update for a lagging subscriber")
	}
}

func (a AuthState) clone() AuthState {
	if a.UserData != nil {
		u := *a.UserData
		a.UserData = &u
	}
	return a
}
