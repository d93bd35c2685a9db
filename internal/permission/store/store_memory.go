package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"apim/internal/permission/models"
	"apim/pkg/platform/sentinel"
)

type pairKey struct {
	resourceID string
	userID     string
}

// InMemoryStore keeps grants and requests in maps. One mutex guards
// every composite operation, which is what makes approve-then-grant and
// replace-then-auto-approve atomic in this backend.
type InMemoryStore struct {
	mu       sync.RWMutex
	grants   map[pairKey]models.Grant
	requests map[string]models.Request
}

// NewMemory constructs an empty in-memory permission store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		grants:   make(map[pairKey]models.Grant),
		requests: make(map[string]models.Request),
	}
}

func (s *InMemoryStore) HasGrant(_ context.Context, userID, resourceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[pairKey{resourceID, userID}]
	return ok, nil
}

func (s *InMemoryStore) UpsertGrant(_ context.Context, grant models.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertGrantLocked(grant)
	return nil
}

func (s *InMemoryStore) upsertGrantLocked(grant models.Grant) {
	key := pairKey{grant.ResourceID, grant.UserID}
	if _, ok := s.grants[key]; ok {
		return // duplicate insert is a no-op
	}
	s.grants[key] = grant
}

func (s *InMemoryStore) ListGrants(_ context.Context, userID string) ([]models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var grants []models.Grant
	for key, grant := range s.grants {
		if key.userID == userID {
			grants = append(grants, grant)
		}
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].ResourceID < grants[j].ResourceID })
	return grants, nil
}

func (s *InMemoryStore) ReplaceGrants(_ context.Context, userID string, resourceIDs []string, actorID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.grants {
		if key.userID == userID {
			delete(s.grants, key)
		}
	}

	for _, resourceID := range resourceIDs {
		s.upsertGrantLocked(models.Grant{
			ResourceID: resourceID,
			UserID:     userID,
			GrantedBy:  actorID,
			GrantedAt:  now,
		})
		s.autoApproveLatestPendingLocked(userID, resourceID, actorID, now)
	}
	return nil
}

// autoApproveLatestPendingLocked resolves the most recent PENDING
// request for the pair, mirroring the approval side effect of a direct
// grant edit.
func (s *InMemoryStore) autoApproveLatestPendingLocked(userID, resourceID, actorID string, now time.Time) {
	var latest *models.Request
	for id := range s.requests {
		request := s.requests[id]
		if request.UserID != userID || request.ResourceID != resourceID || !request.IsPending() {
			continue
		}
		if latest == nil || request.RequestedAt.After(latest.RequestedAt) {
			latest = &request
		}
	}
	if latest == nil {
		return
	}
	latest.Status = models.StatusApproved
	latest.ResponderID = actorID
	respondedAt := now
	latest.RespondedAt = &respondedAt
	s.requests[latest.ID] = *latest
}

func (s *InMemoryStore) RemoveGrantsForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.grants {
		if key.userID == userID {
			delete(s.grants, key)
		}
	}
	return nil
}

func (s *InMemoryStore) RemoveGrantsForResource(_ context.Context, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.grants {
		if key.resourceID == resourceID {
			delete(s.grants, key)
		}
	}
	return nil
}

func (s *InMemoryStore) CreateRequest(_ context.Context, request models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.grants[pairKey{request.ResourceID, request.UserID}]; ok {
		return ErrAlreadyGranted
	}
	for _, existing := range s.requests {
		if existing.UserID == request.UserID && existing.ResourceID == request.ResourceID && existing.IsPending() {
			return ErrAlreadyPending
		}
	}

	s.requests[request.ID] = request
	return nil
}

func (s *InMemoryStore) FindRequest(_ context.Context, requestID string) (models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if request, ok := s.requests[requestID]; ok {
		return request, nil
	}
	return models.Request{}, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ApproveRequest(_ context.Context, requestID, responderID string, now time.Time) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[requestID]
	if !ok || !request.IsPending() {
		return models.Request{}, ErrNotPending
	}

	request.Status = models.StatusApproved
	request.ResponderID = responderID
	respondedAt := now
	request.RespondedAt = &respondedAt
	s.requests[requestID] = request

	s.upsertGrantLocked(models.Grant{
		ResourceID: request.ResourceID,
		UserID:     request.UserID,
		GrantedBy:  responderID,
		GrantedAt:  now,
	})
	return request, nil
}

func (s *InMemoryStore) RejectRequest(_ context.Context, requestID, responderID string, now time.Time) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[requestID]
	if !ok || !request.IsPending() {
		return models.Request{}, ErrNotPending
	}

	request.Status = models.StatusRejected
	request.ResponderID = responderID
	respondedAt := now
	request.RespondedAt = &respondedAt
	s.requests[requestID] = request
	return request, nil
}

func (s *InMemoryStore) ListRequests(_ context.Context, filter models.ListFilter) ([]models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var requests []models.Request
	for _, request := range s.requests {
		if matchesFilter(request, filter) {
			requests = append(requests, request)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].RequestedAt.After(requests[j].RequestedAt)
	})
	return requests, nil
}

func matchesFilter(request models.Request, filter models.ListFilter) bool {
	if filter.UserID != "" && !strings.Contains(request.UserID, filter.UserID) {
		return false
	}
	if len(filter.ResourceIDs) > 0 {
		found := false
		for _, id := range filter.ResourceIDs {
			if request.ResourceID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Status != "" && request.Status != filter.Status {
		return false
	}
	if !filter.From.IsZero() && request.RequestedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && request.RequestedAt.After(filter.To) {
		return false
	}
	return true
}

func (s *InMemoryStore) PendingCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, request := range s.requests {
		if request.IsPending() {
			count++
		}
	}
	return count, nil
}
