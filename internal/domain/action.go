// Package domain defines the core types shared across the DitLoop pipeline:
// the Action union proposed by the AI, streaming chunks, messages, and tool
// definitions.
package domain

import (
	"encoding/json"
	"fmt"
)

// ActionType discriminates the Action union.
type ActionType string

const (
	ActionFileCreate   ActionType = "file_create"
	ActionFileEdit     ActionType = "file_edit"
	ActionShellCommand ActionType = "shell_command"
	ActionGitOperation ActionType = "git_operation"
)

// Action is one typed, validated unit of AI-proposed work. Implementations
// are value types and treated as immutable once constructed.
type Action interface {
	ActionType() ActionType
	// Validate reports whether all fields required by the variant are present.
	Validate() error
}

// FileCreate creates (or overwrites) a file with the given content.
type FileCreate struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (a FileCreate) ActionType() ActionType { return ActionFileCreate }

func (a FileCreate) Validate() error {
	if a.Path == "" {
		return fmt.Errorf("file_create: path is required")
	}
	return nil
}

// FileEdit replaces OldContent with NewContent in an existing file.
type FileEdit struct {
	Path       string `json:"path"`
	OldContent string `json:"oldContent"`
	NewContent string `json:"newContent"`
	Diff       string `json:"diff,omitempty"`
}

func (a FileEdit) ActionType() ActionType { return ActionFileEdit }

func (a FileEdit) Validate() error {
	if a.Path == "" {
		return fmt.Errorf("file_edit: path is required")
	}
	return nil
}

// ShellCommand runs a command in the workspace (or Cwd when set).
type ShellCommand struct {
	Command string `json:"command"`
	Cwd     string `json:"cwd,omitempty"`
}

func (a ShellCommand) ActionType() ActionType { return ActionShellCommand }

func (a ShellCommand) Validate() error {
	if a.Command == "" {
		return fmt.Errorf("shell_command: command is required")
	}
	return nil
}

// GitOp enumerates the git operations an action may request.
type GitOp string

const (
	GitCommit   GitOp = "commit"
	GitBranch   GitOp = "branch"
	GitPush     GitOp = "push"
	GitPull     GitOp = "pull"
	GitStage    GitOp = "stage"
	GitCheckout GitOp = "checkout"
)

// ValidGitOp reports whether op is a member of the closed operation set.
func ValidGitOp(op GitOp) bool {
	switch op {
	case GitCommit, GitBranch, GitPush, GitPull, GitStage, GitCheckout:
		return true
	}
	return false
}

// GitOperation delegates a git operation to the git module.
type GitOperation struct {
	Operation GitOp          `json:"operation"`
	Args      map[string]any `json:"args"`
}

func (a GitOperation) ActionType() ActionType { return ActionGitOperation }

func (a GitOperation) Validate() error {
	if !ValidGitOp(a.Operation) {
		return fmt.Errorf("git_operation: unknown operation %q", a.Operation)
	}
	return nil
}

// actionEnvelope wraps an action with its type tag for (de)serialization.
type actionEnvelope struct {
	Type ActionType      `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalAction serializes an action with a type envelope.
func MarshalAction(a Action) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(actionEnvelope{Type: a.ActionType(), Data: data})
}

// UnmarshalAction deserializes an action from its envelope form.
func UnmarshalAction(data []byte) (Action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	var a Action
	switch env.Type {
	case ActionFileCreate:
		var v FileCreate
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		a = v
	case ActionFileEdit:
		var v FileEdit
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		a = v
	case ActionShellCommand:
		var v ShellCommand
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		a = v
	case ActionGitOperation:
		var v GitOperation
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		a = v
	default:
		return nil, fmt.Errorf("unknown action type %q", env.Type)
	}
	return a, nil
}

// Describe renders a one-line human summary of an action for events and
// approval prompts.
func Describe(a Action) string {
	switch v := a.(type) {
	case FileCreate:
		return fmt.Sprintf("create %s (%d bytes)", v.Path, len(v.Content))
	case FileEdit:
		return fmt.Sprintf("edit %s", v.Path)
	case ShellCommand:
		return fmt.Sprintf("run: %s", v.Command)
	case GitOperation:
		return fmt.Sprintf("git %s", v.Operation)
	default:
		return string(a.ActionType())
	}
}
