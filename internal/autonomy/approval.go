package autonomy

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ApprovalRequest is a pending human-in-the-loop approval created when
// a supervised-level agent wants to run a non-read-set tool. Grounded
// on the teacher's internal/agent.ApprovalRequest shape.
type ApprovalRequest struct {
	ID         string
	ToolCallID string
	ToolName   string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Decided    bool
	Approved   bool
}

// ApprovalStore tracks pending approval requests in memory. Hosts that
// need durability wrap this with their own persistence.
type ApprovalStore struct {
	mu       sync.Mutex
	requests map[string]*ApprovalRequest
	ttl      time.Duration
	now      func() time.Time
}

// NewApprovalStore creates a store with the given request TTL (default
// 5 minutes).
func NewApprovalStore(ttl time.Duration, now func() time.Time) *ApprovalStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &ApprovalStore{requests: make(map[string]*ApprovalRequest), ttl: ttl, now: now}
}

// Request creates a new pending approval request for a tool call.
func (s *ApprovalStore) Request(toolCallID, toolName string) *ApprovalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.now()
	req := &ApprovalRequest{
		ID:         uuid.NewString(),
		ToolCallID: toolCallID,
		ToolName:   toolName,
		CreatedAt:  n,
		ExpiresAt:  n.Add(s.ttl),
	}
	s.requests[req.ID] = req
	return req
}

// Decide resolves a pending request. Returns false if the request is
// unknown or already decided.
func (s *ApprovalStore) Decide(id string, approve bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok || req.Decided {
		return false
	}
	req.Decided = true
	req.Approved = approve
	return true
}

// Get returns the request by id, and whether it is still within its
// TTL (an expired-but-undecided request is reported as expired, not
// approved).
func (s *ApprovalStore) Get(id string) (*ApprovalRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, false
	}
	expired := !req.Decided && s.now().After(req.ExpiresAt)
	return req, !expired
}
