// Package identity holds the forum username of the account the client
// searches as.
package identity

import "sync"

// Store is a username that can be changed at runtime. It is safe for
// concurrent use.
type Store struct {
	mu   sync.RWMutex
	name string
}

// New returns a Store holding name.
func New(name string) *Store {
	return &Store{name: name}
}

// Username returns the current username.
func (s *Store) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// SetUsername replaces the current username.
func (s *Store) SetUsername(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}
