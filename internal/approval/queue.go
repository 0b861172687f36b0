package approval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tkingovr/postguard/api"
)

var (
	// ErrNotFound is returned when no request has the given ID.
	ErrNotFound = errors.New("approval request not found")

	// ErrResolved is returned when a request was already decided.
	ErrResolved = errors.New("approval request already resolved")
)

// Queue manages posts waiting for an operator decision.
type Queue struct {
	mu       sync.RWMutex
	requests map[string]*Request
	timeout  time.Duration

	// Subscribers for real-time updates
	subMu   sync.RWMutex
	subs    map[int]chan *Request
	nextSub int
}

// NewQueue creates a new approval queue with the given timeout.
func NewQueue(timeout time.Duration) *Queue {
	return &Queue{
		requests: make(map[string]*Request),
		timeout:  timeout,
		subs:     make(map[int]chan *Request),
	}
}

// Submit holds a post for review and blocks until an operator decides, the
// timeout passes or ctx is canceled. Only an explicit approval returns
// VerdictAllow.
func (q *Queue) Submit(ctx context.Context, agent, rule, message, preview string) (api.Verdict, error) {
	req := q.enqueue(agent, rule, message, preview)
	q.notifySubscribers(req)

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case <-req.Wait():
	case <-timer.C:
		q.expire(req, StatusTimedOut)
	case <-ctx.Done():
		q.expire(req, StatusCanceled)
		return api.VerdictDeny, ctx.Err()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if req.Status == StatusApproved {
		return api.VerdictAllow, nil
	}
	return api.VerdictDeny, nil
}

func (q *Queue) enqueue(agent, rule, message, preview string) *Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	req := &Request{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Agent:     agent,
		Preview:   preview,
		Message:   message,
		Rule:      rule,
		Status:    StatusPending,
		done:      make(chan struct{}),
	}
	q.requests[req.ID] = req
	return req
}

// expire resolves req unless an operator decided it first.
func (q *Queue) expire(req *Request, status Status) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if req.Status == StatusPending {
		q.resolveLocked(req, status)
	}
}

// Approve marks a request as approved.
func (q *Queue) Approve(id string) error {
	return q.resolve(id, StatusApproved)
}

// Deny marks a request as denied.
func (q *Queue) Deny(id string) error {
	return q.resolve(id, StatusDenied)
}

func (q *Queue) resolve(id string, status Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	req, ok := q.requests[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if req.Status != StatusPending {
		return fmt.Errorf("%w: %q is %s", ErrResolved, id, req.Status)
	}
	q.resolveLocked(req, status)
	return nil
}

func (q *Queue) resolveLocked(req *Request, status Status) {
	req.Status = status
	now := time.Now()
	req.DecidedAt = &now
	if status == StatusApproved {
		req.Verdict = api.VerdictAllow
	} else {
		req.Verdict = api.VerdictDeny
	}
	close(req.done)
}

// Get returns a copy of the request with the given ID.
func (q *Queue) Get(id string) (Request, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	req, ok := q.requests[id]
	if !ok {
		return Request{}, false
	}
	return *req, true
}

// Pending returns pending requests, oldest first.
func (q *Queue) Pending() []*Request {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var pending []*Request
	for _, req := range q.requests {
		if req.Status == StatusPending {
			pending = append(pending, req)
		}
	}
	sortByCreated(pending)
	return pending
}

// All returns all requests, oldest first (for dashboard history).
func (q *Queue) All() []*Request {
	q.mu.RLock()
	defer q.mu.RUnlock()

	all := make([]*Request, 0, len(q.requests))
	for _, req := range q.requests {
		all = append(all, req)
	}
	sortByCreated(all)
	return all
}

func sortByCreated(reqs []*Request) {
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}

// Subscribe returns a channel that receives new approval requests.
func (q *Queue) Subscribe() (<-chan *Request, func()) {
	q.subMu.Lock()
	defer q.subMu.Unlock()

	ch := make(chan *Request, 50)
	id := q.nextSub
	q.nextSub++
	q.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			q.subMu.Lock()
			defer q.subMu.Unlock()
			delete(q.subs, id)
			close(ch)
		})
	}

	return ch, cancel
}

func (q *Queue) notifySubscribers(req *Request) {
	q.subMu.RLock()
	defer q.subMu.RUnlock()

	for _, ch := range q.subs {
		select {
		case ch <- req:
		default:
		}
	}
}
