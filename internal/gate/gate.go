// Package gate is the per-request gatekeeper: it validates the inbound
// access assertion, confirms the account is still active, confirms the
// presented refresh value matches the single live session on record,
// and decides whether to silently renew a near-expiry access assertion.
package gate

import (
	"context"
	"errors"
	"log/slog"

	idmodels "apim/internal/identity/models"
	"apim/internal/platform/metrics"
	sessionmodels "apim/internal/session/models"
	"apim/internal/token"
	derrors "apim/pkg/domain-errors"
	"apim/pkg/platform/sentinel"
	"apim/pkg/requestcontext"
)

// Credentials is the slice of the identity service the gate needs.
type Credentials interface {
	Lookup(ctx context.Context, userID string) (idmodels.User, error)
}

// SessionReader loads the live session for a user. Satisfied by the
// session store; the gate never writes on the hot path.
type SessionReader interface {
	Find(ctx context.Context, userID string) (sessionmodels.Session, error)
}

// Result is the outcome of a successful pass through the gate.
// RenewedAccess is non-empty only when the sliding-window renewal
// fired; the transport layer is responsible for delivering it back.
type Result struct {
	UserID          string
	PermissionClass idmodels.PermissionClass
	RenewedAccess   string
}

// Gate authenticates one request. Every failure is terminal for the
// request and maps to a distinct, stable code so clients can choose
// silent re-authentication versus a hard login wall.
type Gate struct {
	tokens      *token.Service
	credentials Credentials
	sessions    SessionReader
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func New(tokens *token.Service, credentials Credentials, sessions SessionReader, m *metrics.Metrics, logger *slog.Logger) *Gate {
	return &Gate{
		tokens:      tokens,
		credentials: credentials,
		sessions:    sessions,
		metrics:     m,
		logger:      logger,
	}
}

// Authenticate runs the full gate sequence over the presented access
// assertion and refresh value.
func (g *Gate) Authenticate(ctx context.Context, access, refresh string) (Result, error) {
	if access == "" || refresh == "" {
		return Result{}, derrors.New(derrors.CodeUnauthenticated, "login required")
	}

	claims, err := g.tokens.Verify(access, token.KindAccess)
	if err != nil {
		return Result{}, derrors.New(derrors.CodeSessionExpired, "session has expired, log in again")
	}

	user, err := g.credentials.Lookup(ctx, claims.Subject)
	if err != nil {
		if derrors.HasCode(err, derrors.CodeNotFound) {
			// Account deleted while the assertion was still in flight.
			return Result{}, derrors.New(derrors.CodeSessionExpired, "session has expired, log in again")
		}
		return Result{}, err
	}
	if !user.Active {
		// Deactivation takes effect immediately, valid assertion or not.
		return Result{}, derrors.New(derrors.CodeAccountDisabled, "account is disabled")
	}

	session, err := g.sessions.Find(ctx, user.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Server-side logout or reset cleared the session.
			return Result{}, derrors.New(derrors.CodeSessionExpired, "session has expired, log in again")
		}
		return Result{}, derrors.Wrap(err, derrors.CodeStoreFailure, "failed to load session")
	}
	if session.RefreshValue != refresh {
		// Another login rotated the session. This fires even though the
		// access assertion itself is still valid: a stolen access
		// assertion is cut off the moment the legitimate user
		// re-authenticates elsewhere.
		g.metrics.IncSessionSuperseded()
		g.logger.InfoContext(ctx, "request rejected, session superseded", "user_id", user.ID)
		return Result{}, derrors.New(derrors.CodeSessionSuperseded,
			"logged in from another device, this session is no longer valid")
	}

	result := Result{
		UserID:          user.ID,
		PermissionClass: user.PermissionClass,
	}

	if g.tokens.NeedsRenewal(claims, requestcontext.Now(ctx)) {
		renewed, err := g.tokens.IssueAccess(user.ID)
		if err != nil {
			// The presented assertion is still valid; renewal failing
			// must not reject the request.
			g.logger.ErrorContext(ctx, "failed to renew access assertion",
				"error", err,
				"user_id", user.ID,
			)
		} else {
			result.RenewedAccess = renewed
			g.metrics.IncTokenRenewal()
		}
	}

	return result, nil
}
