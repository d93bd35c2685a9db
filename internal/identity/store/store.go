package store

import (
	"context"
	"time"

	"apim/internal/identity/models"
)

// Store persists console accounts.
//
// Error contract: FindByID returns sentinel.ErrNotFound (possibly
// wrapped) when the user does not exist; Save returns
// sentinel.ErrConflict when the user ID is already taken; mutating
// methods return sentinel.ErrNotFound when the target row is missing.
type Store interface {
	Save(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	SetActive(ctx context.Context, id string, active bool, actorID string, now time.Time) error
	SetPasswordHash(ctx context.Context, id, passwordHash, actorID string, now time.Time) error
	Delete(ctx context.Context, id string) error
}
