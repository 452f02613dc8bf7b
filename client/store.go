package client

import "sync"

// TokenStore holds the in-memory half of a session. The refresh token never
// leaves the cookie jar.
type TokenStore interface {
	AccessToken() string
	SetAccessToken(token string)
	CSRFToken() string
	SetCSRFToken(token string)
	Clear()
}

type MemoryStore struct {
	mu     sync.RWMutex
	access string
	csrf   string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *MemoryStore) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = token
}

func (s *MemoryStore) CSRFToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.csrf
}

func (s *MemoryStore) SetCSRFToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrf = token
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.csrf = ""
}
