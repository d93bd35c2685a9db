package models

import "time"

// Resource is a managed API endpoint in the console's catalog. The
// access-control side only needs enough of it to validate permission
// requests and render listings.
type Resource struct {
	ID          string    `json:"api_id"`
	Name        string    `json:"api_name"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	Description string    `json:"description,omitempty"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
}
