package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"apim/internal/session/models"
	"apim/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in a map for tests and single-process
// development. The mutex spans the whole compare-and-swap in Rotate so
// concurrent refreshes serialize correctly.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewMemory constructs an empty in-memory session store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]models.Session)}
}

func (s *InMemoryStore) Replace(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.UserID] = session
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, userID string) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[userID]; ok {
		return session, nil
	}
	return models.Session{}, fmt.Errorf("session for %s: %w", userID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) Rotate(_ context.Context, userID, presented, next string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		return fmt.Errorf("session for %s: %w", userID, sentinel.ErrNotFound)
	}
	if session.RefreshValue != presented {
		return ErrSuperseded
	}
	session.RefreshValue = next
	session.IssuedAt = now
	s.sessions[userID] = session
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[userID]; !ok {
		return fmt.Errorf("session for %s: %w", userID, sentinel.ErrNotFound)
	}
	delete(s.sessions, userID)
	return nil
}
