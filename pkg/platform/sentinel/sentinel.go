package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these
// (optionally wrapped) so services can translate them into domain
// errors without inspecting message text.
//
// These represent factual states about resources, not validation
// failures:
// - ErrNotFound: row does not exist in the store
// - ErrConflict: a uniqueness or state constraint blocked the write
// - ErrExpired: assertion or session has expired
// - ErrInvalidState: entity in wrong state for the requested transition
// - ErrUnavailable: backing store temporarily unreachable
//
// For validation errors (bad input, missing fields), use
// pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
