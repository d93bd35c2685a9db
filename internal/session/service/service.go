package service

import (
	"context"
	"errors"
	"log/slog"

	idmodels "apim/internal/identity/models"
	"apim/internal/platform/metrics"
	"apim/internal/session/models"
	"apim/internal/session/store"
	"apim/internal/token"
	derrors "apim/pkg/domain-errors"
	"apim/pkg/platform/sentinel"
	"apim/pkg/requestcontext"
)

// Credentials is the slice of the identity service this package needs.
type Credentials interface {
	Authenticate(ctx context.Context, userID, password string) (idmodels.User, error)
	Lookup(ctx context.Context, userID string) (idmodels.User, error)
}

// TokenPair is the outbound bundle delivered back to the transport
// layer after login or refresh. How it reaches the client (cookie,
// header) is the transport's concern.
type TokenPair struct {
	Access  string
	Refresh string
}

// Service owns the session lifecycle: login installs a session, refresh
// rotates it, logout clears it. All three uphold the single-session
// invariant through the store's atomic Replace/Rotate operations.
type Service struct {
	credentials Credentials
	tokens      *token.Service
	sessions    store.Store
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func New(credentials Credentials, tokens *token.Service, sessions store.Store, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		credentials: credentials,
		tokens:      tokens,
		sessions:    sessions,
		metrics:     m,
		logger:      logger,
	}
}

// Login verifies the password and installs a fresh session, superseding
// any session the user holds on another device.
func (s *Service) Login(ctx context.Context, userID, password string) (idmodels.User, TokenPair, error) {
	user, err := s.credentials.Authenticate(ctx, userID, password)
	if err != nil {
		s.metrics.IncLoginFailure()
		return idmodels.User{}, TokenPair{}, err
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return idmodels.User{}, TokenPair{}, err
	}

	session := models.Session{
		UserID:       user.ID,
		RefreshValue: pair.Refresh,
		IssuedAt:     requestcontext.Now(ctx),
	}
	if err := s.sessions.Replace(ctx, session); err != nil {
		return idmodels.User{}, TokenPair{}, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to install session")
	}

	s.metrics.IncLogin()
	s.logger.InfoContext(ctx, "login", "user_id", user.ID)
	return user, pair, nil
}

// Refresh rotates the session bound to the presented refresh value.
// Refresh values are single-use: the rotation is a compare-and-swap, so
// a replayed or raced value fails with SESSION_SUPERSEDED.
func (s *Service) Refresh(ctx context.Context, presented string) (idmodels.User, TokenPair, error) {
	if presented == "" {
		return idmodels.User{}, TokenPair{}, derrors.New(derrors.CodeUnauthenticated, "no refresh value presented")
	}

	claims, err := s.tokens.Verify(presented, token.KindRefresh)
	if err != nil {
		// Expired, malformed, and wrong-kind all mean the client must
		// re-authenticate; none reveals more than that.
		return idmodels.User{}, TokenPair{}, derrors.New(derrors.CodeSessionExpired, "session has expired, log in again")
	}

	user, err := s.credentials.Lookup(ctx, claims.Subject)
	if err != nil {
		if derrors.HasCode(err, derrors.CodeNotFound) {
			return idmodels.User{}, TokenPair{}, derrors.New(derrors.CodeSessionExpired, "session has expired, log in again")
		}
		return idmodels.User{}, TokenPair{}, err
	}
	if !user.Active {
		return idmodels.User{}, TokenPair{}, derrors.New(derrors.CodeAccountDisabled, "account is disabled")
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return idmodels.User{}, TokenPair{}, err
	}

	now := requestcontext.Now(ctx)
	if err := s.sessions.Rotate(ctx, user.ID, presented, pair.Refresh, now); err != nil {
		switch {
		case errors.Is(err, store.ErrSuperseded):
			s.metrics.IncSessionSuperseded()
			return idmodels.User{}, TokenPair{}, derrors.New(derrors.CodeSessionSuperseded,
				"logged in from another device, this session is no longer valid")
		case errors.Is(err, sentinel.ErrNotFound):
			return idmodels.User{}, TokenPair{}, derrors.New(derrors.CodeSessionExpired, "session has expired, log in again")
		default:
			return idmodels.User{}, TokenPair{}, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to rotate session")
		}
	}

	s.logger.InfoContext(ctx, "session rotated", "user_id", user.ID)
	return user, pair, nil
}

// Logout clears the user's session. Best effort: clearing the server
// row is the authoritative action, and a missing row means there is
// nothing left to invalidate.
func (s *Service) Logout(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	if err := s.sessions.Delete(ctx, userID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.ErrorContext(ctx, "failed to clear session on logout",
			"error", err,
			"user_id", userID,
		)
	}
}

func (s *Service) issuePair(userID string) (TokenPair, error) {
	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return TokenPair{}, derrors.Wrap(err, derrors.CodeInternal, "failed to issue access assertion")
	}
	refresh, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return TokenPair{}, derrors.Wrap(err, derrors.CodeInternal, "failed to issue refresh assertion")
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}
