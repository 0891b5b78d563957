// Package approval queues AI-proposed actions for human review and resolves
// the batch once every item has a decision. An optional policy auto-resolves
// items so routine operations skip the prompt.
package approval

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ditloop/ditloop/internal/domain"
	"github.com/ditloop/ditloop/internal/events"
)

var (
	// ErrNotFound is returned when a decision references an id that is not
	// in the current queue.
	ErrNotFound = errors.New("action not found in approval queue")
	// ErrAlreadyResolved is returned when a decision targets an item that
	// has already left pending. First response wins.
	ErrAlreadyResolved = errors.New("action already resolved")
)

// Status is the lifecycle state of a queued action. Transitions out of
// StatusPending are one-way.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusEdited   Status = "edited"
)

// QueuedAction is one action awaiting (or past) a decision.
type QueuedAction struct {
	ID           string        `json:"id"`
	Action       domain.Action `json:"action"`
	Status       Status        `json:"status"`
	EditedAction domain.Action `json:"editedAction,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	TrackingID   string        `json:"trackingId,omitempty"`
	RequestedAt  time.Time     `json:"requestedAt"`
	ResolvedAt   time.Time     `json:"resolvedAt,omitempty"`
}

// Proposal submits one action for approval. TrackingID is an optional
// caller correlation id (e.g. a session's tracked-action id), carried
// through to the batch result untouched.
type Proposal struct {
	Action     domain.Action
	TrackingID string
}

// Effective returns the action to execute: the edited replacement when one
// exists, the original otherwise.
func (q QueuedAction) Effective() domain.Action {
	if q.EditedAction != nil {
		return q.EditedAction
	}
	return q.Action
}

// Result is the outcome of one approval batch. Edited items count as
// approved.
type Result struct {
	Approved []QueuedAction
	Rejected []QueuedAction
}

// Engine holds at most one outstanding approval batch. Callers serialize
// batches per session; a new RequestApproval replaces the queue.
type Engine struct {
	mu        sync.Mutex
	bus       *events.Bus
	workspace string
	policy    *Policy
	entropy   *ulid.MonotonicEntropy

	queue    []*QueuedAction
	resultCh chan Result
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy installs auto-approval rules evaluated at RequestApproval time.
func WithPolicy(p *Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// NewEngine creates an approval engine publishing on bus. workspace is
// attached to emitted events for consumer routing.
func NewEngine(bus *events.Bus, workspace string, opts ...Option) *Engine {
	e := &Engine{
		bus:       bus,
		workspace: workspace,
		entropy:   ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RequestApproval queues actions and returns a channel that delivers the
// batch result exactly once, after every item has left pending. The batch is
// fixed: actions proposed later join the next batch. An empty input yields a
// channel that already holds the empty result.
func (e *Engine) RequestApproval(actions []domain.Action) <-chan Result {
	proposals := make([]Proposal, len(actions))
	for i, a := range actions {
		proposals[i] = Proposal{Action: a}
	}
	return e.Request(proposals)
}

// Request is RequestApproval with caller correlation ids attached.
func (e *Engine) Request(proposals []Proposal) <-chan Result {
	e.mu.Lock()

	now := time.Now()
	queue := make([]*QueuedAction, 0, len(proposals))
	for _, p := range proposals {
		queue = append(queue, &QueuedAction{
			ID:          ulid.MustNew(ulid.Timestamp(now), e.entropy).String(),
			Action:      p.Action,
			Status:      StatusPending,
			TrackingID:  p.TrackingID,
			RequestedAt: now,
		})
	}

	e.queue = queue
	e.resultCh = make(chan Result, 1)
	ch := e.resultCh

	var granted, denied []*QueuedAction
	if e.policy != nil {
		for _, q := range queue {
			switch decision, pattern := e.policy.Decide(q.Action); decision {
			case Allow:
				q.Status = StatusApproved
				q.ResolvedAt = time.Now()
				granted = append(granted, q)
			case Deny:
				q.Status = StatusRejected
				q.Reason = fmt.Sprintf("blocked by policy pattern %q", pattern)
				q.ResolvedAt = time.Now()
				denied = append(denied, q)
			}
		}
	}
	e.checkCompletion()
	e.mu.Unlock()

	for _, q := range queue {
		e.bus.Emit(events.ApprovalRequested, events.ApprovalRequestedEvent{
			ID:        q.ID,
			Action:    string(q.Action.ActionType()),
			Detail:    domain.Describe(q.Action),
			Workspace: e.workspace,
		})
	}
	for _, q := range granted {
		e.bus.Emit(events.ApprovalGranted, events.ApprovalGrantedEvent{ID: q.ID})
	}
	for _, q := range denied {
		e.bus.Emit(events.ApprovalDenied, events.ApprovalDeniedEvent{ID: q.ID, Reason: q.Reason})
	}

	return ch
}

// Approve marks the action approved.
func (e *Engine) Approve(id string) error {
	return e.resolve(id, func(q *QueuedAction) {
		q.Status = StatusApproved
	}, events.ApprovalGranted, "")
}

// Reject marks the action rejected with an optional reason.
func (e *Engine) Reject(id, reason string) error {
	return e.resolve(id, func(q *QueuedAction) {
		q.Status = StatusRejected
		q.Reason = reason
	}, events.ApprovalDenied, reason)
}

// Edit approves the action with a replacement. The original is kept beside
// the replacement for audit.
func (e *Engine) Edit(id string, edited domain.Action) error {
	if err := edited.Validate(); err != nil {
		return fmt.Errorf("edited action: %w", err)
	}
	return e.resolve(id, func(q *QueuedAction) {
		q.Status = StatusEdited
		q.EditedAction = edited
	}, events.ApprovalGranted, "")
}

// ApproveAll approves every still-pending item. Already-resolved items are
// left alone, so calling it twice is harmless.
func (e *Engine) ApproveAll() {
	e.mu.Lock()
	var flipped []*QueuedAction
	for _, q := range e.queue {
		if q.Status == StatusPending {
			q.Status = StatusApproved
			q.ResolvedAt = time.Now()
			flipped = append(flipped, q)
		}
	}
	e.checkCompletion()
	e.mu.Unlock()

	for _, q := range flipped {
		e.bus.Emit(events.ApprovalGranted, events.ApprovalGrantedEvent{ID: q.ID})
	}
}

// Pending returns a snapshot of the items still awaiting a decision, in
// proposal order.
func (e *Engine) Pending() []QueuedAction {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []QueuedAction
	for _, q := range e.queue {
		if q.Status == StatusPending {
			out = append(out, *q)
		}
	}
	return out
}

func (e *Engine) resolve(id string, flip func(*QueuedAction), event, reason string) error {
	e.mu.Lock()

	var target *QueuedAction
	for _, q := range e.queue {
		if q.ID == id {
			target = q
			break
		}
	}
	if target == nil {
		e.mu.Unlock()
		return fmt.Errorf("action %q: %w", id, ErrNotFound)
	}
	if target.Status != StatusPending {
		e.mu.Unlock()
		return fmt.Errorf("action %q is %s: %w", id, target.Status, ErrAlreadyResolved)
	}

	flip(target)
	target.ResolvedAt = time.Now()
	e.checkCompletion()
	e.mu.Unlock()

	switch event {
	case events.ApprovalGranted:
		e.bus.Emit(event, events.ApprovalGrantedEvent{ID: id})
	case events.ApprovalDenied:
		e.bus.Emit(event, events.ApprovalDeniedEvent{ID: id, Reason: reason})
	}
	return nil
}

// checkCompletion fires the batch result when nothing is pending. Caller
// holds e.mu. The channel is buffered and nilled after the send so the
// result is delivered exactly once without blocking the decider.
func (e *Engine) checkCompletion() {
	if e.resultCh == nil {
		return
	}
	var res Result
	for _, q := range e.queue {
		switch q.Status {
		case StatusPending:
			return
		case StatusRejected:
			res.Rejected = append(res.Rejected, *q)
		default:
			res.Approved = append(res.Approved, *q)
		}
	}
	e.resultCh <- res
	e.resultCh = nil
}
