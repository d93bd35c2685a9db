package models

import "time"

// Status is a permission request's lifecycle state. A request is
// created PENDING and transitions exactly once to APPROVED or REJECTED;
// terminal states are immutable.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Grant is an unconditional standing permission for a (user, resource)
// pair. Existence of the row is the whole decision.
type Grant struct {
	ResourceID string    `json:"resource_id"`
	UserID     string    `json:"user_id"`
	GrantedBy  string    `json:"granted_by"`
	GrantedAt  time.Time `json:"granted_at"`
}

// Request is a user's ask for a grant, subject to administrative
// approval. ResponderID and RespondedAt are set only on the terminal
// transition.
type Request struct {
	ID          string     `json:"request_id"`
	UserID      string     `json:"user_id"`
	ResourceID  string     `json:"resource_id"`
	Status      Status     `json:"status"`
	Reason      string     `json:"reason"`
	RequestedAt time.Time  `json:"requested_at"`
	ResponderID string     `json:"responder_id,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// IsPending reports whether the request can still transition.
func (r Request) IsPending() bool {
	return r.Status == StatusPending
}

// ListFilter narrows a request listing. Zero values mean "don't
// filter". UserID matches as a substring (console search box
// semantics). ResourceIDs, when non-empty, restricts to that set; the
// service layer resolves a method filter into resource IDs before it
// reaches the store.
type ListFilter struct {
	UserID      string
	ResourceIDs []string
	Status      Status
	From        time.Time
	To          time.Time
}
