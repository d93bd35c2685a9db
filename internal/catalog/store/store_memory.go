package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"apim/internal/catalog/models"
	"apim/pkg/platform/sentinel"
)

// InMemoryStore keeps the catalog in a map, for tests and the no-DB
// fallback.
type InMemoryStore struct {
	mu        sync.RWMutex
	resources map[string]models.Resource
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{resources: make(map[string]models.Resource)}
}

func (s *InMemoryStore) Save(_ context.Context, resource models.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[resource.ID]; ok {
		return fmt.Errorf("resource %s: %w", resource.ID, sentinel.ErrConflict)
	}
	s.resources[resource.ID] = resource
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, resourceID string) (models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if resource, ok := s.resources[resourceID]; ok {
		return resource, nil
	}
	return models.Resource{}, fmt.Errorf("resource %s: %w", resourceID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) Exists(_ context.Context, resourceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.resources[resourceID]
	return ok, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resources := make([]models.Resource, 0, len(s.resources))
	for _, resource := range s.resources {
		resources = append(resources, resource)
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].ID < resources[j].ID })
	return resources, nil
}

func (s *InMemoryStore) ListByMethod(_ context.Context, method string) ([]models.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var resources []models.Resource
	for _, resource := range s.resources {
		if strings.EqualFold(resource.Method, method) {
			resources = append(resources, resource)
		}
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].ID < resources[j].ID })
	return resources, nil
}

func (s *InMemoryStore) Delete(_ context.Context, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[resourceID]; !ok {
		return fmt.Errorf("resource %s: %w", resourceID, sentinel.ErrNotFound)
	}
	delete(s.resources, resourceID)
	return nil
}
