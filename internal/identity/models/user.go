package models

import "time"

// PermissionClass is the coarse role tag attached to every account.
type PermissionClass string

const (
	PermissionClassAdmin   PermissionClass = "ADMIN"
	PermissionClassGeneral PermissionClass = "GENERAL"
)

// User is the credential-store record for one console account.
type User struct {
	ID              string
	PasswordHash    string
	DisplayName     string
	PermissionClass PermissionClass
	Active          bool
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedBy       string
	UpdatedAt       time.Time
}

// IsAdmin is the single capability predicate for elevated actions.
// Every admin gate in the codebase goes through here so the check can't
// drift between call sites.
func (c PermissionClass) IsAdmin() bool {
	return c == PermissionClassAdmin
}

// IsAdmin reports whether the account may perform elevated actions.
func (u User) IsAdmin() bool {
	return u.PermissionClass.IsAdmin()
}

// Profile is the client-facing projection of a User. The password hash
// never leaves the service layer.
type Profile struct {
	ID              string          `json:"user_id"`
	DisplayName     string          `json:"display_name"`
	PermissionClass PermissionClass `json:"permission_class"`
	Active          bool            `json:"active"`
}

// Profile returns the client-facing view of the user.
func (u User) Profile() Profile {
	return Profile{
		ID:              u.ID,
		DisplayName:     u.DisplayName,
		PermissionClass: u.PermissionClass,
		Active:          u.Active,
	}
}
