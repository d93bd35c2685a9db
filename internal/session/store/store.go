package store

import (
	"context"
	"errors"
	"time"

	"apim/internal/session/models"
)

// ErrSuperseded is returned by Rotate when the presented refresh value
// no longer matches the stored one: another login or refresh rotated
// the session in the meantime.
var ErrSuperseded = errors.New("session superseded")

// Store persists at most one Session per user.
//
// Error contract: Find and Delete return sentinel.ErrNotFound (possibly
// wrapped) when no session exists; Rotate additionally returns
// ErrSuperseded on a refresh-value mismatch. Rotate must be atomic:
// under concurrent calls for the same user exactly one compare-and-swap
// wins and the rest observe ErrSuperseded.
type Store interface {
	// Replace unconditionally installs the session, superseding any
	// previous one for the user. This is the login path.
	Replace(ctx context.Context, session models.Session) error

	Find(ctx context.Context, userID string) (models.Session, error)

	// Rotate swaps the stored refresh value from presented to next in a
	// single atomic step. This is the refresh path; it is what makes
	// refresh values single-use.
	Rotate(ctx context.Context, userID, presented, next string, now time.Time) error

	Delete(ctx context.Context, userID string) error
}
