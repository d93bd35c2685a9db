package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"apim/internal/identity/models"
	"apim/internal/identity/store"
	derrors "apim/pkg/domain-errors"
	"apim/pkg/platform/sentinel"
	"apim/pkg/requestcontext"
)

// dummyHash is compared against when the user ID is unknown so that
// login latency does not reveal whether an account exists.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// SessionRemover clears a user's live session. Satisfied by the session
// store; declared here so identity does not import it.
type SessionRemover interface {
	Delete(ctx context.Context, userID string) error
}

// GrantRemover clears a user's permission grants. Satisfied by the
// permission store.
type GrantRemover interface {
	RemoveGrantsForUser(ctx context.Context, userID string) error
}

// Service is the credential store façade: account lookup, password
// verification, and admin account management.
type Service struct {
	users      store.Store
	sessions   SessionRemover
	grants     GrantRemover
	logger     *slog.Logger
	bcryptCost int
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithCascades wires the stores cleaned up when an account is deleted.
func WithCascades(sessions SessionRemover, grants GrantRemover) Option {
	return func(s *Service) {
		s.sessions = sessions
		s.grants = grants
	}
}

// WithBcryptCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func New(users store.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		users:      users,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	return s
}

// Lookup returns the account for the given user ID.
func (s *Service) Lookup(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.User{}, derrors.Newf(derrors.CodeNotFound, "user %s does not exist", userID)
		}
		return models.User{}, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to look up user")
	}
	return user, nil
}

// Exists reports whether the account is registered.
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	_, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to look up user")
	}
	return true, nil
}

// IsActive reports whether the account exists and is active.
func (s *Service) IsActive(ctx context.Context, userID string) (bool, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to look up user")
	}
	return user.Active, nil
}

// Authenticate verifies a user ID / password pair. The failure is
// identical whether the user ID is unknown or the password is wrong, to
// avoid user enumeration. Inactive accounts fail only after the
// password checks out, for the same reason.
func (s *Service) Authenticate(ctx context.Context, userID, password string) (models.User, error) {
	invalid := derrors.New(derrors.CodeUnauthorized, "invalid credentials")

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Burn a comparison so unknown IDs cost the same as bad passwords.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return models.User{}, invalid
		}
		return models.User{}, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to look up user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, invalid
	}

	if !user.Active {
		return models.User{}, derrors.New(derrors.CodeAccountDisabled, "account is disabled")
	}

	return user, nil
}

// NewUser carries the inputs for account creation.
type NewUser struct {
	ID              string
	Password        string
	DisplayName     string
	PermissionClass models.PermissionClass
	Active          bool
}

// Create registers a new account with a hashed password.
func (s *Service) Create(ctx context.Context, input NewUser, actorID string) (models.User, error) {
	input.ID = strings.TrimSpace(input.ID)
	if input.ID == "" {
		return models.User{}, derrors.New(derrors.CodeValidation, "user ID is required")
	}
	if input.Password == "" {
		return models.User{}, derrors.New(derrors.CodeValidation, "password is required")
	}
	if input.PermissionClass == "" {
		input.PermissionClass = models.PermissionClassGeneral
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return models.User{}, derrors.Wrap(err, derrors.CodeInternal, "failed to hash password")
	}

	now := requestcontext.Now(ctx)
	user := models.User{
		ID:              input.ID,
		PasswordHash:    string(hash),
		DisplayName:     input.DisplayName,
		PermissionClass: input.PermissionClass,
		Active:          input.Active,
		CreatedBy:       actorID,
		CreatedAt:       now,
		UpdatedBy:       actorID,
		UpdatedAt:       now,
	}
	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.User{}, derrors.Newf(derrors.CodeConflict, "user %s already exists", input.ID)
		}
		return models.User{}, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to create user")
	}
	return user, nil
}

// SetActive flips the account's active flag. Deactivation takes effect
// on the very next gated request regardless of outstanding assertions.
func (s *Service) SetActive(ctx context.Context, userID string, active bool, actorID string) error {
	err := s.users.SetActive(ctx, userID, active, actorID, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return derrors.Newf(derrors.CodeNotFound, "user %s does not exist", userID)
		}
		return derrors.Wrap(err, derrors.CodeStoreFailure, "failed to update user")
	}
	return nil
}

// ChangePassword re-hashes and stores a new password.
func (s *Service) ChangePassword(ctx context.Context, userID, newPassword, actorID string) error {
	if newPassword == "" {
		return derrors.New(derrors.CodeValidation, "password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "failed to hash password")
	}
	if err := s.users.SetPasswordHash(ctx, userID, string(hash), actorID, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return derrors.Newf(derrors.CodeNotFound, "user %s does not exist", userID)
		}
		return derrors.Wrap(err, derrors.CodeStoreFailure, "failed to update password")
	}
	return nil
}

// Delete removes the account and cascades its session and permission
// grants so no grant row ever references a missing user.
func (s *Service) Delete(ctx context.Context, userID string) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return derrors.Newf(derrors.CodeNotFound, "user %s does not exist", userID)
		}
		return derrors.Wrap(err, derrors.CodeStoreFailure, "failed to delete user")
	}

	if s.grants != nil {
		if err := s.grants.RemoveGrantsForUser(ctx, userID); err != nil {
			return derrors.Wrap(err, derrors.CodeStoreFailure, "failed to remove user grants")
		}
	}
	if s.sessions != nil {
		if err := s.sessions.Delete(ctx, userID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			// The account row is already gone; an orphaned session can't
			// pass the gate, so log and move on.
			s.logger.ErrorContext(ctx, "failed to delete session during user deletion",
				"error", err,
				"user_id", userID,
			)
		}
	}
	return nil
}
