package auth

import (
	"context"
	"sync"
	"time"
)

type MemorySessionStore struct {
	mutex    sync.Mutex
	sessions map[string]time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]time.Time),
	}
}

func (s *MemorySessionStore) Create(_ context.Context, token string, expiresAt time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sessions[token] = expiresAt
	return nil
}

func (s *MemorySessionStore) ExpiresAt(_ context.Context, token string) (time.Time, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	expiresAt, ok := s.sessions[token]
	if !ok {
		return time.Time{}, ErrSessionNotFound
	}
	return expiresAt, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.sessions[token]
	delete(s.sessions, token)
	return ok, nil
}

func (s *MemorySessionStore) Tokens(_ context.Context) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	tokens := make([]string, 0, len(s.sessions))
	for token := range s.sessions {
		tokens = append(tokens, token)
	}
	return tokens, nil
}
