// Package token issues and verifies the signed, time-bounded assertions
// that carry identity between requests: a short-lived access assertion
// presented on every call, and a longer-lived refresh assertion whose
// current value is pinned to the user's single live session.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes the two assertion flavors. Verification fails with
// ErrWrongKind when one is presented where the other is expected.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Verification failure kinds. Callers branch on these to map into the
// session error taxonomy.
var (
	ErrMalformed = errors.New("malformed or badly signed assertion")
	ErrExpired   = errors.New("assertion expired")
	ErrWrongKind = errors.New("wrong assertion kind")
)

// Claims is the claim set embedded in both assertion kinds. Never
// trusted standalone for authorization: the gate re-checks the account
// and the live session on every request.
type Claims struct {
	Kind Kind `json:"kind"`
	jwt.RegisteredClaims
}

// Config carries the immutable signing configuration, built once at
// startup.
type Config struct {
	SigningKey     string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	RenewThreshold time.Duration
}

// Service signs and verifies assertions. Construction fails on a
// missing signing key; that misconfiguration is fatal, not a
// per-request condition.
type Service struct {
	signingKey     []byte
	accessTTL      time.Duration
	refreshTTL     time.Duration
	renewThreshold time.Duration
	now            func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock function for testability.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(cfg Config, opts ...Option) (*Service, error) {
	if cfg.SigningKey == "" {
		return nil, fmt.Errorf("token service: signing key is required")
	}
	s := &Service{
		signingKey:     []byte(cfg.SigningKey),
		accessTTL:      cfg.AccessTTL,
		refreshTTL:     cfg.RefreshTTL,
		renewThreshold: cfg.RenewThreshold,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueAccess signs a fresh access assertion for the subject.
func (s *Service) IssueAccess(userID string) (string, error) {
	return s.issue(userID, KindAccess, s.accessTTL)
}

// IssueRefresh signs a fresh refresh assertion. The random JTI makes
// every issued value distinct with overwhelming probability; persisting
// it as the session's current refresh value is the caller's job.
func (s *Service) IssueRefresh(userID string) (string, error) {
	return s.issue(userID, KindRefresh, s.refreshTTL)
}

func (s *Service) issue(userID string, kind Kind, ttl time.Duration) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign %s assertion: %w", kind, err)
	}
	return signed, nil
}

// Verify checks signature, format, expiry, and kind. The three failure
// modes are distinguishable so the gate can map them to distinct
// client-facing statuses.
func (s *Service) Verify(assertion string, want Kind) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(assertion, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrMalformed
	}
	if claims.Kind != want {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// NeedsRenewal reports whether an access assertion's remaining lifetime
// has dropped below the sliding-window threshold. The gate uses this to
// keep active users logged in while genuinely idle sessions expire.
func (s *Service) NeedsRenewal(claims *Claims, now time.Time) bool {
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Sub(now) < s.renewThreshold
}

// AccessTTL exposes the configured access assertion lifetime (the
// transport layer uses it for cookie max-age).
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL exposes the configured refresh assertion lifetime.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }
