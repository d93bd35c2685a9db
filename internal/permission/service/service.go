// Package service owns the permission ledger and its request workflow:
// submission, approval, rejection, direct grant edits, and the
// read-side authorization check.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"apim/internal/permission/models"
	"apim/internal/permission/store"
	"apim/internal/platform/metrics"
	derrors "apim/pkg/domain-errors"
	"apim/pkg/platform/sentinel"
	"apim/pkg/requestcontext"
)

const maxReasonLength = 255

// Directory is the slice of the identity service this package needs.
type Directory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// Catalog validates resource IDs and resolves method filters.
type Catalog interface {
	Exists(ctx context.Context, resourceID string) (bool, error)
	ResourceIDsByMethod(ctx context.Context, method string) ([]string, error)
}

// ListQuery is the console's request search form. Method is resolved
// into resource IDs through the catalog before the store sees it.
type ListQuery struct {
	UserID     string
	ResourceID string
	Method     string
	Status     models.Status
	From       time.Time
	To         time.Time
}

// Service validates and orchestrates permission operations over the
// store. Conflict semantics (already granted, already pending, not
// pending) live in the store, where they can be enforced atomically;
// this layer translates them into stable domain codes.
type Service struct {
	store     store.Store
	directory Directory
	catalog   Catalog
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func New(s store.Store, directory Directory, catalog Catalog, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:     s,
		directory: directory,
		catalog:   catalog,
		metrics:   m,
		logger:    logger,
		entropy:   ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// HasGrant is the read-side authorization decision for a protected
// resource invocation: the grant row either exists or it doesn't.
func (s *Service) HasGrant(ctx context.Context, userID, resourceID string) (bool, error) {
	granted, err := s.store.HasGrant(ctx, userID, resourceID)
	if err != nil {
		return false, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to check grant")
	}
	return granted, nil
}

// ListGrants returns the user's standing grants.
func (s *Service) ListGrants(ctx context.Context, userID string) ([]models.Grant, error) {
	grants, err := s.store.ListGrants(ctx, userID)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to list grants")
	}
	return grants, nil
}

// ReplaceGrants swaps the user's entire grant set in one atomic step.
// Any PENDING request covered by a newly granted resource is resolved
// as approved with the acting administrator as responder, so the
// workflow never shows a stale ask for something already granted.
func (s *Service) ReplaceGrants(ctx context.Context, userID string, resourceIDs []string) error {
	exists, err := s.directory.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return derrors.New(derrors.CodeNotFound, "user not found")
	}

	seen := make(map[string]struct{}, len(resourceIDs))
	deduped := make([]string, 0, len(resourceIDs))
	for _, resourceID := range resourceIDs {
		if resourceID == "" {
			return derrors.New(derrors.CodeValidation, "resource id must not be empty")
		}
		if _, ok := seen[resourceID]; ok {
			continue
		}
		seen[resourceID] = struct{}{}

		known, err := s.catalog.Exists(ctx, resourceID)
		if err != nil {
			return err
		}
		if !known {
			return derrors.Newf(derrors.CodeNotFound, "resource %s not found", resourceID)
		}
		deduped = append(deduped, resourceID)
	}

	actorID := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)
	if err := s.store.ReplaceGrants(ctx, userID, deduped, actorID, now); err != nil {
		return derrors.Wrap(err, derrors.CodeStoreFailure, "failed to replace grants")
	}

	s.metrics.IncPermissionRequest("auto_approved")
	s.logger.InfoContext(ctx, "grants replaced",
		"user_id", userID,
		"actor_id", actorID,
		"grant_count", len(deduped),
	)
	return nil
}

// RemoveGrantsForUser cascades user deletion; wired into the identity
// service's delete path.
func (s *Service) RemoveGrantsForUser(ctx context.Context, userID string) error {
	if err := s.store.RemoveGrantsForUser(ctx, userID); err != nil {
		return derrors.Wrap(err, derrors.CodeStoreFailure, "failed to remove grants for user")
	}
	return nil
}

// RemoveGrantsForResource cascades resource removal; wired into the
// catalog service's delete path.
func (s *Service) RemoveGrantsForResource(ctx context.Context, resourceID string) error {
	if err := s.store.RemoveGrantsForResource(ctx, resourceID); err != nil {
		return derrors.Wrap(err, derrors.CodeStoreFailure, "failed to remove grants for resource")
	}
	return nil
}

// Submit files a new PENDING request for the authenticated user. A pair
// that is already granted or already has a PENDING request is rejected
// with a stable conflict code.
func (s *Service) Submit(ctx context.Context, userID, resourceID, reason string) (models.Request, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Request{}, derrors.New(derrors.CodeValidation, "reason is required")
	}
	if len(reason) > maxReasonLength {
		return models.Request{}, derrors.Newf(derrors.CodeValidation, "reason must be at most %d characters", maxReasonLength)
	}

	known, err := s.catalog.Exists(ctx, resourceID)
	if err != nil {
		return models.Request{}, err
	}
	if !known {
		return models.Request{}, derrors.New(derrors.CodeNotFound, "resource not found")
	}

	request := models.Request{
		ID:          s.newRequestID(),
		UserID:      userID,
		ResourceID:  resourceID,
		Status:      models.StatusPending,
		Reason:      reason,
		RequestedAt: requestcontext.Now(ctx),
	}

	if err := s.store.CreateRequest(ctx, request); err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyGranted):
			return models.Request{}, derrors.New(derrors.CodeAlreadyGranted, "permission is already granted")
		case errors.Is(err, store.ErrAlreadyPending):
			return models.Request{}, derrors.New(derrors.CodeAlreadyPending, "a request for this permission is already pending")
		default:
			return models.Request{}, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to create request")
		}
	}

	s.metrics.IncPermissionRequest("submitted")
	s.logger.InfoContext(ctx, "permission request submitted",
		"request_id", request.ID,
		"user_id", userID,
		"resource_id", resourceID,
	)
	return request, nil
}

// Approve transitions the request to APPROVED and writes the grant.
// The store performs both in one atomic step; a raced second approval
// surfaces as NOT_PENDING.
func (s *Service) Approve(ctx context.Context, requestID string) (models.Request, error) {
	responderID := requestcontext.UserID(ctx)
	request, err := s.store.ApproveRequest(ctx, requestID, responderID, requestcontext.Now(ctx))
	if err != nil {
		return models.Request{}, s.translateResolveErr(err, requestID)
	}

	s.metrics.IncPermissionRequest("approved")
	s.logger.InfoContext(ctx, "permission request approved",
		"request_id", requestID,
		"responder_id", responderID,
	)
	return request, nil
}

// Reject transitions the request to REJECTED. No grant side effect.
func (s *Service) Reject(ctx context.Context, requestID string) (models.Request, error) {
	responderID := requestcontext.UserID(ctx)
	request, err := s.store.RejectRequest(ctx, requestID, responderID, requestcontext.Now(ctx))
	if err != nil {
		return models.Request{}, s.translateResolveErr(err, requestID)
	}

	s.metrics.IncPermissionRequest("rejected")
	s.logger.InfoContext(ctx, "permission request rejected",
		"request_id", requestID,
		"responder_id", responderID,
	)
	return request, nil
}

func (s *Service) translateResolveErr(err error, requestID string) error {
	switch {
	case errors.Is(err, store.ErrNotPending):
		return derrors.New(derrors.CodeNotPending, "request is not pending")
	case errors.Is(err, sentinel.ErrNotFound):
		return derrors.Newf(derrors.CodeNotFound, "request %s not found", requestID)
	default:
		return derrors.Wrap(err, derrors.CodeStoreFailure, "failed to resolve request")
	}
}

// Find returns one request by ID.
func (s *Service) Find(ctx context.Context, requestID string) (models.Request, error) {
	request, err := s.store.FindRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Request{}, derrors.New(derrors.CodeNotFound, "request not found")
		}
		return models.Request{}, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to load request")
	}
	return request, nil
}

// List searches requests. A method filter is resolved into the matching
// catalog resource IDs first; a method matching nothing yields an empty
// result rather than an unfiltered one.
func (s *Service) List(ctx context.Context, query ListQuery) ([]models.Request, error) {
	filter := models.ListFilter{
		UserID: query.UserID,
		Status: query.Status,
		From:   query.From,
		To:     query.To,
	}
	if query.ResourceID != "" {
		filter.ResourceIDs = []string{query.ResourceID}
	}
	if query.Method != "" {
		ids, err := s.catalog.ResourceIDsByMethod(ctx, query.Method)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []models.Request{}, nil
		}
		filter.ResourceIDs = intersect(filter.ResourceIDs, ids)
		if len(filter.ResourceIDs) == 0 {
			return []models.Request{}, nil
		}
	}

	requests, err := s.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to list requests")
	}
	if requests == nil {
		requests = []models.Request{}
	}
	return requests, nil
}

// PendingCount backs the console's badge counter.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	count, err := s.store.PendingCount(ctx)
	if err != nil {
		return 0, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to count pending requests")
	}
	return count, nil
}

func (s *Service) newRequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func intersect(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
