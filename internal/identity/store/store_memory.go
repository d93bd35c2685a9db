package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"apim/internal/identity/models"
	"apim/pkg/platform/sentinel"
)

// InMemoryStore keeps accounts in a map for tests and single-process
// development. It intentionally favors clarity over performance.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// NewMemory constructs an empty in-memory user store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{users: make(map[string]models.User)}
}

func (s *InMemoryStore) Save(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("user %s: %w", user.ID, sentinel.ErrConflict)
	}
	s.users[user.ID] = user
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return models.User{}, fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) SetActive(_ context.Context, id string, active bool, actorID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	user.Active = active
	user.UpdatedBy = actorID
	user.UpdatedAt = now
	s.users[id] = user
	return nil
}

func (s *InMemoryStore) SetPasswordHash(_ context.Context, id, passwordHash, actorID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	user.PasswordHash = passwordHash
	user.UpdatedBy = actorID
	user.UpdatedAt = now
	s.users[id] = user
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.users, id)
	return nil
}
