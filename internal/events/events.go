package events

// Event names published by the core pipeline.
const (
	ExecutionStarted   = "execution:started"
	ExecutionOutput    = "execution:output"
	ExecutionCompleted = "execution:completed"
	ExecutionError     = "execution:error"

	ApprovalRequested = "approval:requested"
	ApprovalGranted   = "approval:granted"
	ApprovalDenied    = "approval:denied"

	ActionExecuted   = "action:executed"
	ActionFailed     = "action:failed"
	ActionRolledBack = "action:rolled-back"
)

// ExecutionStartedEvent is emitted before the provider stream is consumed.
type ExecutionStartedEvent struct {
	TaskID    string `json:"taskId"`
	Workspace string `json:"workspace"`
}

// ExecutionOutputEvent carries one streamed text delta.
type ExecutionOutputEvent struct {
	TaskID string `json:"taskId"`
	Stream string `json:"stream"` // "stdout" or "stderr"
	Data   string `json:"data"`
}

// ExecutionCompletedEvent is emitted when a session completes.
type ExecutionCompletedEvent struct {
	TaskID   string `json:"taskId"`
	ExitCode int    `json:"exitCode"`
}

// ExecutionErrorEvent is emitted when a session fails.
type ExecutionErrorEvent struct {
	TaskID string `json:"taskId"`
	Error  string `json:"error"`
}

// ApprovalRequestedEvent is emitted once per queued action.
type ApprovalRequestedEvent struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Detail    string `json:"detail"`
	Workspace string `json:"workspace"`
}

// ApprovalGrantedEvent is emitted when an action is approved or edited.
type ApprovalGrantedEvent struct {
	ID string `json:"id"`
}

// ApprovalDeniedEvent is emitted when an action is rejected.
type ApprovalDeniedEvent struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// ActionExecutedEvent is emitted after a successful execution.
type ActionExecutedEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Path      string `json:"path,omitempty"`
	Workspace string `json:"workspace"`
}

// ActionFailedEvent is emitted after a failed execution.
type ActionFailedEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Error     string `json:"error"`
	Workspace string `json:"workspace"`
}

// ActionRolledBackEvent is emitted after a successful rollback.
type ActionRolledBackEvent struct {
	ID        string `json:"id"`
	Workspace string `json:"workspace"`
}
