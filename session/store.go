// Package session holds the identity and credentials of the current chat
// session. Single slot: at most one active session at a time.
package session

import (
	"chat-bridge/domain"
	"sync"
)

// Store is the single-slot session holder. It performs no I/O; the session
// manager must have closed the transport of any replaced session before
// calling Set.
type Store struct {
	mu      sync.RWMutex
	current *domain.Session
}

func NewStore() *Store {
	return &Store{}
}

// Set replaces any existing session.
func (s *Store) Set(session domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &session
}

// Get returns the active session, if any.
func (s *Store) Get() (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Session{}, false
	}
	return *s.current, true
}

// Clear is idempotent.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
