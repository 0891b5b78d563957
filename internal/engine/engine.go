// Package engine drives one execution run: it builds the system prompt,
// consumes the provider stream sequentially, turns tool invocations into
// proposed actions, and records everything in a session.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/ditloop/ditloop/internal/aidf"
	"github.com/ditloop/ditloop/internal/domain"
	"github.com/ditloop/ditloop/internal/events"
	"github.com/ditloop/ditloop/internal/logging"
	"github.com/ditloop/ditloop/internal/parser"
	"github.com/ditloop/ditloop/internal/session"
	"github.com/ditloop/ditloop/pkg/llm"
)

// Options configures one execution run.
type Options struct {
	Task      aidf.Task
	Context   aidf.Context
	Workspace string
	Model     string
	MaxTokens int
	Tools     []domain.ToolDefinition
}

// Callbacks let the caller observe the run as it happens. Any callback may
// be nil. OnError fires at most once.
type Callbacks struct {
	OnTextDelta      func(text string)
	OnActionProposed func(action domain.Action, trackingID string)
	OnError          func(err error)
}

// Engine executes tasks against a provider.
type Engine struct {
	provider llm.Provider
	bus      *events.Bus
	store    *session.Store
	log      *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore persists terminal sessions to a session store.
func WithStore(s *session.Store) Option {
	return func(e *Engine) { e.store = s }
}

// New creates an engine over a provider, publishing on bus.
func New(provider llm.Provider, bus *events.Bus, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		bus:      bus,
		log:      logging.New("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one task to a terminal session. Stream consumption is
// strictly sequential; provider failures and ctx cancellation mark the
// session failed and return the partial record. Execute itself never
// returns an error.
func (e *Engine) Execute(ctx context.Context, opts Options, cb Callbacks) *session.Session {
	sess := session.New(opts.Task.ID, opts.Workspace)
	log := e.log.WithSession(sess.ID).WithTask(opts.Task.ID)

	systemPrompt := BuildSystemPrompt(opts.Task, opts.Context)
	sess.AddMessage(domain.RoleUser, taskMessage(opts.Task))

	tools := opts.Tools
	if len(tools) == 0 {
		tools = DefaultTools()
	}

	e.bus.Emit(events.ExecutionStarted, events.ExecutionStartedEvent{
		TaskID:    opts.Task.ID,
		Workspace: opts.Workspace,
	})
	log.Info("execution_started", map[string]any{"model": opts.Model})

	stream, err := e.provider.SendMessage(ctx, &llm.SendOptions{
		Messages:     sess.Messages,
		SystemPrompt: systemPrompt,
		Model:        opts.Model,
		MaxTokens:    opts.MaxTokens,
		Tools:        tools,
	})
	if err != nil {
		e.fail(ctx, sess, cb, log, fmt.Errorf("start stream: %w", err))
		return sess
	}

	var text strings.Builder

	for {
		select {
		case <-ctx.Done():
			e.fail(ctx, sess, cb, log, ctx.Err())
			return sess

		case chunk, ok := <-stream:
			if !ok {
				e.finish(ctx, sess, cb, log, text.String())
				return sess
			}

			switch chunk.Type {
			case domain.ChunkDelta:
				text.WriteString(chunk.Content)
				if cb.OnTextDelta != nil {
					cb.OnTextDelta(chunk.Content)
				}
				e.bus.Emit(events.ExecutionOutput, events.ExecutionOutputEvent{
					TaskID: opts.Task.ID,
					Stream: "stdout",
					Data:   chunk.Content,
				})

			case domain.ChunkToolUse:
				if chunk.ToolUse == nil {
					continue
				}
				if action := parser.ParseToolUse(*chunk.ToolUse); action != nil {
					id := sess.ProposeAction(action)
					log.Info("action_proposed", map[string]any{
						"action": string(action.ActionType()),
						"detail": domain.Describe(action),
					})
					if cb.OnActionProposed != nil {
						cb.OnActionProposed(action, id)
					}
				}

			case domain.ChunkError:
				err := chunk.Err
				if err == nil {
					err = fmt.Errorf("provider stream failed")
				}
				e.fail(ctx, sess, cb, log, err)
				return sess

			case domain.ChunkDone:
				// the channel close ends the loop; nothing to do here
			}
		}
	}
}

// finish completes a session: trailing markdown in the accumulated text is
// scanned for actions the provider expressed as prose instead of tool calls.
func (e *Engine) finish(ctx context.Context, sess *session.Session, cb Callbacks, log *logging.Logger, text string) {
	if text != "" {
		sess.AddMessage(domain.RoleAssistant, text)
		for _, action := range parser.ParseMarkdown(text) {
			id := sess.ProposeAction(action)
			if cb.OnActionProposed != nil {
				cb.OnActionProposed(action, id)
			}
		}
	}

	sess.Complete()
	e.bus.Emit(events.ExecutionCompleted, events.ExecutionCompletedEvent{
		TaskID:   sess.TaskID,
		ExitCode: 0,
	})
	log.Info("execution_completed", map[string]any{"actions": len(sess.Actions)})
	e.persist(ctx, sess, log)
}

func (e *Engine) fail(ctx context.Context, sess *session.Session, cb Callbacks, log *logging.Logger, err error) {
	sess.Fail(err.Error())
	if cb.OnError != nil {
		cb.OnError(err)
	}
	e.bus.Emit(events.ExecutionError, events.ExecutionErrorEvent{
		TaskID: sess.TaskID,
		Error:  err.Error(),
	})
	log.Error("execution_failed", nil, err)
	e.persist(ctx, sess, log)
}

// persist saves terminal sessions when a store is configured. Persistence
// failures are logged, not surfaced: the in-memory session is already the
// source of truth for the caller.
func (e *Engine) persist(ctx context.Context, sess *session.Session, log *logging.Logger) {
	if e.store == nil {
		return
	}
	// a cancelled run still deserves a record
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := e.store.Save(ctx, sess); err != nil {
		log.Warn("session_save_failed", nil, err)
	}
}

// taskMessage renders the initial user message from a task.
func taskMessage(task aidf.Task) string {
	if task.Goal != "" {
		return fmt.Sprintf("%s\n\n%s", task.Title, task.Goal)
	}
	return task.Title
}

// BuildSystemPrompt assembles the system prompt from project context and
// task sections. Missing pieces are silently omitted.
func BuildSystemPrompt(task aidf.Task, ctx aidf.Context) string {
	var b strings.Builder

	b.WriteString("You are an AI coding assistant working inside a user's repository.\n")

	if ctx.AgentsContent != "" {
		b.WriteString("\n# Project Context\n\n")
		b.WriteString(ctx.AgentsContent)
		b.WriteString("\n")
	}

	b.WriteString("\n# Task: ")
	b.WriteString(task.Title)
	b.WriteString("\n")

	if task.Goal != "" {
		b.WriteString("\n## Goal\n")
		b.WriteString(task.Goal)
		b.WriteString("\n")
	}
	if task.Scope != "" {
		b.WriteString("\n## Scope\n")
		b.WriteString(task.Scope)
		b.WriteString("\n")
	}
	if len(task.Requirements) > 0 {
		b.WriteString("\n## Requirements\n")
		for _, r := range task.Requirements {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
	}
	if len(task.DefinitionOfDone) > 0 {
		b.WriteString("\n## Definition of Done\n")
		for _, d := range task.DefinitionOfDone {
			b.WriteString("- ")
			b.WriteString(d)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n# Instructions\n")
	b.WriteString("Use the provided tools to create files, edit files, run commands, and perform git operations.\n")
	b.WriteString("Every action you propose requires explicit user approval before it runs.\n")
	b.WriteString("Prefer small, reviewable changes.\n")

	return b.String()
}

// DefaultTools returns the built-in tool definitions offered to providers
// when the caller supplies none.
func DefaultTools() []domain.ToolDefinition {
	return []domain.ToolDefinition{
		{
			Name:        "create_file",
			Description: "Create a new file (or overwrite an existing one) with the given content",
			Parameters: domain.JSONSchema{
				"type": "object",
				"properties": map[string]any{
					"path":    map[string]any{"type": "string", "description": "File path relative to the workspace root"},
					"content": map[string]any{"type": "string", "description": "Full file content"},
				},
				"required": []string{"path", "content"},
			},
		},
		{
			Name:        "edit_file",
			Description: "Replace the first occurrence of old_content with new_content in an existing file",
			Parameters: domain.JSONSchema{
				"type": "object",
				"properties": map[string]any{
					"path":        map[string]any{"type": "string", "description": "File path relative to the workspace root"},
					"old_content": map[string]any{"type": "string", "description": "Exact content to replace"},
					"new_content": map[string]any{"type": "string", "description": "Replacement content"},
				},
				"required": []string{"path", "old_content", "new_content"},
			},
		},
		{
			Name:        "run_command",
			Description: "Run a shell command in the workspace",
			Parameters: domain.JSONSchema{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{"type": "string", "description": "Shell command to execute"},
					"cwd":     map[string]any{"type": "string", "description": "Working directory, relative to the workspace root"},
				},
				"required": []string{"command"},
			},
		},
		{
			Name:        "git_operation",
			Description: "Perform a git operation: commit, branch, push, pull, stage, or checkout",
			Parameters: domain.JSONSchema{
				"type": "object",
				"properties": map[string]any{
					"operation": map[string]any{"type": "string", "enum": []string{"commit", "branch", "push", "pull", "stage", "checkout"}},
					"args":      map[string]any{"type": "object", "description": "Operation arguments, e.g. message for commit"},
				},
				"required": []string{"operation"},
			},
		},
	}
}
