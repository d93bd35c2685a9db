package store

import (
	"context"
	"errors"
	"time"

	"apim/internal/permission/models"
)

// Named errors for workflow conflicts. Grants and requests live in one
// store package because their composite operations (approve, replace)
// must commit together.
var (
	// ErrAlreadyGranted blocks a request submission when a grant for
	// the pair already exists.
	ErrAlreadyGranted = errors.New("permission already granted")
	// ErrAlreadyPending blocks a second PENDING request for the same pair.
	ErrAlreadyPending = errors.New("request already pending")
	// ErrNotPending is returned by Approve/Reject when the request is
	// missing or already resolved.
	ErrNotPending = errors.New("request is not pending")
)

// Store persists permission grants and permission requests.
//
// Error contract: FindRequest returns sentinel.ErrNotFound (possibly
// wrapped) for unknown IDs; CreateRequest returns ErrAlreadyGranted or
// ErrAlreadyPending on conflicts; ApproveRequest and RejectRequest
// return ErrNotPending when the row is missing or terminal. All
// composite operations are atomic: a concurrent second approve must
// observe ErrNotPending, never a second grant.
type Store interface {
	// HasGrant is the read-side authorization check: O(1) by the
	// (resource_id, user_id) composite key.
	HasGrant(ctx context.Context, userID, resourceID string) (bool, error)

	// UpsertGrant inserts a grant; a duplicate is a no-op, never an error.
	UpsertGrant(ctx context.Context, grant models.Grant) error

	ListGrants(ctx context.Context, userID string) ([]models.Grant, error)

	// ReplaceGrants atomically swaps the user's entire grant set for
	// the given resource IDs and auto-approves the latest PENDING
	// request per newly granted pair with the actor as responder, so
	// grants and outstanding requests never silently diverge.
	ReplaceGrants(ctx context.Context, userID string, resourceIDs []string, actorID string, now time.Time) error

	// RemoveGrantsForUser cascades user deletion.
	RemoveGrantsForUser(ctx context.Context, userID string) error

	// RemoveGrantsForResource cascades resource removal.
	RemoveGrantsForResource(ctx context.Context, resourceID string) error

	// CreateRequest inserts a PENDING request after conflict checks,
	// all within one atomic step.
	CreateRequest(ctx context.Context, request models.Request) error

	FindRequest(ctx context.Context, requestID string) (models.Request, error)

	// ApproveRequest transitions PENDING to APPROVED and writes the
	// grant in the same transaction; both effects or neither.
	ApproveRequest(ctx context.Context, requestID, responderID string, now time.Time) (models.Request, error)

	// RejectRequest transitions PENDING to REJECTED; no grant side effect.
	RejectRequest(ctx context.Context, requestID, responderID string, now time.Time) (models.Request, error)

	ListRequests(ctx context.Context, filter models.ListFilter) ([]models.Request, error)

	PendingCount(ctx context.Context) (int, error)
}
