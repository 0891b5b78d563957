// Package session holds the record of one execution run: the conversation,
// every proposed action with its lifecycle, and the terminal status. A
// Session is owned by the engine goroutine that built it; the store persists
// snapshots.
package session

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/ditloop/ditloop/internal/domain"
)

// Status is the session lifecycle state. Completed and Failed are terminal.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ActionStatus is the lifecycle state of one tracked action.
type ActionStatus string

const (
	ActionProposed ActionStatus = "proposed"
	ActionApproved ActionStatus = "approved"
	ActionRejected ActionStatus = "rejected"
	ActionExecuted ActionStatus = "executed"
	ActionFailed   ActionStatus = "failed"
)

// TrackedAction is one proposed action and what became of it.
type TrackedAction struct {
	ID         string        `json:"id"`
	Action     domain.Action `json:"action"`
	Status     ActionStatus  `json:"status"`
	Result     string        `json:"result,omitempty"`
	ProposedAt time.Time     `json:"proposedAt"`
	ResolvedAt *time.Time    `json:"resolvedAt,omitempty"`
}

// Session is the record of one execution run.
type Session struct {
	ID        string           `json:"id"`
	TaskID    string           `json:"taskId"`
	Workspace string           `json:"workspace"`
	Messages  []domain.Message `json:"messages"`
	Actions   []TrackedAction  `json:"actions"`
	Status    Status           `json:"status"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`

	entropy *ulid.MonotonicEntropy
}

// New creates a running session for a task.
func New(taskID, workspace string) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Workspace: workspace,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
		entropy:   ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0),
	}
}

// AddMessage appends one conversation entry.
func (s *Session) AddMessage(role domain.Role, content string) {
	s.Messages = append(s.Messages, domain.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	s.UpdatedAt = time.Now()
}

// ProposeAction records an AI-proposed action in arrival order and returns
// its tracking id.
func (s *Session) ProposeAction(a domain.Action) string {
	// sessions loaded from the store arrive without entropy
	if s.entropy == nil {
		s.entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	}
	id := ulid.MustNew(ulid.Now(), s.entropy).String()
	s.Actions = append(s.Actions, TrackedAction{
		ID:         id,
		Action:     a,
		Status:     ActionProposed,
		ProposedAt: time.Now(),
	})
	s.UpdatedAt = time.Now()
	return id
}

// ResolveAction advances a tracked action and records its outcome. Unknown
// ids are ignored.
func (s *Session) ResolveAction(id string, status ActionStatus, result string) {
	for i := range s.Actions {
		if s.Actions[i].ID != id {
			continue
		}
		now := time.Now()
		s.Actions[i].Status = status
		s.Actions[i].Result = result
		s.Actions[i].ResolvedAt = &now
		s.UpdatedAt = now
		return
	}
}

// Complete marks the session completed. Terminal states stick: completing a
// failed session is a no-op.
func (s *Session) Complete() {
	if s.Status != StatusRunning {
		return
	}
	s.Status = StatusCompleted
	s.UpdatedAt = time.Now()
}

// Fail marks the session failed with a reason.
func (s *Session) Fail(reason string) {
	if s.Status != StatusRunning {
		return
	}
	s.Status = StatusFailed
	s.Error = reason
	s.UpdatedAt = time.Now()
}
