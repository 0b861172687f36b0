package approval

import (
	"time"

	"github.com/tkingovr/postguard/api"
)

// Status represents the state of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusTimedOut Status = "timed_out"
	StatusCanceled Status = "canceled"
)

// Request is a post held for operator review.
type Request struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	Agent     string      `json:"agent,omitempty"`
	Preview   string      `json:"preview"`
	Message   string      `json:"message"`
	Rule      string      `json:"rule"`
	Status    Status      `json:"status"`
	Verdict   api.Verdict `json:"verdict,omitempty"`
	DecidedAt *time.Time  `json:"decided_at,omitempty"`

	// done is closed when the request is resolved
	done chan struct{}
}

// Wait returns a channel closed when the request is resolved.
func (r *Request) Wait() <-chan struct{} {
	return r.done
}
