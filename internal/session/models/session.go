package models

import "time"

// Session is the single live refresh binding for a user. Its existence
// and RefreshValue are the source of truth for "is this login still
// valid": issuing a new one supersedes whatever any other device holds.
type Session struct {
	UserID       string
	RefreshValue string
	IssuedAt     time.Time
}
