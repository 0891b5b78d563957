package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ditloop/ditloop/internal/aidf"
	"github.com/ditloop/ditloop/internal/domain"
	"github.com/ditloop/ditloop/internal/events"
	"github.com/ditloop/ditloop/internal/session"
	"github.com/ditloop/ditloop/pkg/llm"
)

// fakeProvider replays canned chunks. A nil chunks slice with startErr set
// simulates a provider that cannot start the stream at all.
type fakeProvider struct {
	chunks   []domain.StreamChunk
	startErr error
	lastOpts *llm.SendOptions
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) SendMessage(ctx context.Context, opts *llm.SendOptions) (<-chan domain.StreamChunk, error) {
	f.lastOpts = opts
	if f.startErr != nil {
		return nil, f.startErr
	}
	ch := make(chan domain.StreamChunk)
	go func() {
		defer close(ch)
		for _, c := range f.chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (f *fakeProvider) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	return nil, nil
}

func (f *fakeProvider) Capabilities() llm.Capabilities {
	return llm.Capabilities{Streaming: true, ToolUse: true}
}

func testTask() aidf.Task {
	return aidf.Task{ID: "task-1", Title: "Add readme", Goal: "Write a README"}
}

func TestExecuteTextOnlyStream(t *testing.T) {
	provider := &fakeProvider{chunks: []domain.StreamChunk{
		{Type: domain.ChunkDelta, Content: "Thinking "},
		{Type: domain.ChunkDelta, Content: "about it."},
		{Type: domain.ChunkDone, StopReason: "end_turn"},
	}}
	bus := events.NewBus()
	e := New(provider, bus)

	var deltas []string
	completed := 0
	bus.Subscribe(events.ExecutionCompleted, func(any) { completed++ })

	sess := e.Execute(context.Background(), Options{Task: testTask(), Workspace: "/ws"}, Callbacks{
		OnTextDelta: func(s string) { deltas = append(deltas, s) },
	})

	assert.Equal(t, session.StatusCompleted, sess.Status)
	assert.Equal(t, []string{"Thinking ", "about it."}, deltas)
	assert.Equal(t, 1, completed)

	// user task message plus accumulated assistant text
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, domain.RoleAssistant, sess.Messages[1].Role)
	assert.Equal(t, "Thinking about it.", sess.Messages[1].Content)
}

func TestExecuteProposesToolActionsInOrder(t *testing.T) {
	provider := &fakeProvider{chunks: []domain.StreamChunk{
		{Type: domain.ChunkToolUse, ToolUse: &domain.ToolUse{
			Name:      "create_file",
			Arguments: map[string]any{"path": "a.txt", "content": "x"},
		}},
		{Type: domain.ChunkToolUse, ToolUse: &domain.ToolUse{
			Name:      "run_command",
			Arguments: map[string]any{"command": "go test"},
		}},
		{Type: domain.ChunkToolUse, ToolUse: &domain.ToolUse{
			Name:      "not_a_real_tool",
			Arguments: map[string]any{},
		}},
		{Type: domain.ChunkDone},
	}}
	e := New(provider, events.NewBus())

	var proposed []domain.Action
	sess := e.Execute(context.Background(), Options{Task: testTask(), Workspace: "/ws"}, Callbacks{
		OnActionProposed: func(a domain.Action, id string) { proposed = append(proposed, a) },
	})

	assert.Equal(t, session.StatusCompleted, sess.Status)
	require.Len(t, proposed, 2, "unknown tool must be skipped")
	assert.Equal(t, domain.ActionFileCreate, proposed[0].ActionType())
	assert.Equal(t, domain.ActionShellCommand, proposed[1].ActionType())

	require.Len(t, sess.Actions, 2)
	assert.Equal(t, session.ActionProposed, sess.Actions[0].Status)
}

func TestExecuteParsesTrailingMarkdown(t *testing.T) {
	provider := &fakeProvider{chunks: []domain.StreamChunk{
		{Type: domain.ChunkDelta, Content: "Run this:\n```bash\nmake build\n```\n"},
		{Type: domain.ChunkDone},
	}}
	e := New(provider, events.NewBus())

	sess := e.Execute(context.Background(), Options{Task: testTask(), Workspace: "/ws"}, Callbacks{})

	require.Len(t, sess.Actions, 1)
	assert.Equal(t, domain.ShellCommand{Command: "make build"}, sess.Actions[0].Action)
}

func TestExecuteProviderStartFailure(t *testing.T) {
	provider := &fakeProvider{startErr: errors.New("auth expired")}
	bus := events.NewBus()
	e := New(provider, bus)

	var errEvents []events.ExecutionErrorEvent
	bus.Subscribe(events.ExecutionError, func(p any) {
		errEvents = append(errEvents, p.(events.ExecutionErrorEvent))
	})

	errCount := 0
	sess := e.Execute(context.Background(), Options{Task: testTask(), Workspace: "/ws"}, Callbacks{
		OnError: func(error) { errCount++ },
	})

	assert.Equal(t, session.StatusFailed, sess.Status)
	assert.Contains(t, sess.Error, "auth expired")
	assert.Equal(t, 1, errCount)
	require.Len(t, errEvents, 1)
}

func TestExecuteMidStreamErrorKeepsPartialSession(t *testing.T) {
	provider := &fakeProvider{chunks: []domain.StreamChunk{
		{Type: domain.ChunkToolUse, ToolUse: &domain.ToolUse{
			Name:      "create_file",
			Arguments: map[string]any{"path": "a.txt", "content": "x"},
		}},
		{Type: domain.ChunkError, Err: errors.New("connection reset")},
	}}
	e := New(provider, events.NewBus())

	errCount := 0
	sess := e.Execute(context.Background(), Options{Task: testTask(), Workspace: "/ws"}, Callbacks{
		OnError: func(error) { errCount++ },
	})

	assert.Equal(t, session.StatusFailed, sess.Status)
	assert.Contains(t, sess.Error, "connection reset")
	assert.Equal(t, 1, errCount)
	// the action proposed before the failure is retained
	require.Len(t, sess.Actions, 1)
}

func TestExecuteCancellation(t *testing.T) {
	// a provider that never emits keeps the engine blocked on the stream
	block := make(chan domain.StreamChunk)
	slow := providerFunc(func(ctx context.Context, opts *llm.SendOptions) (<-chan domain.StreamChunk, error) {
		return block, nil
	})

	e := New(slow, events.NewBus())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	sess := e.Execute(ctx, Options{Task: testTask(), Workspace: "/ws"}, Callbacks{})
	assert.Equal(t, session.StatusFailed, sess.Status)
	assert.Contains(t, sess.Error, "context canceled")
}

func TestExecutePersistsTerminalSession(t *testing.T) {
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	provider := &fakeProvider{chunks: []domain.StreamChunk{
		{Type: domain.ChunkDelta, Content: "done"},
		{Type: domain.ChunkDone},
	}}
	e := New(provider, events.NewBus(), WithStore(store))

	sess := e.Execute(context.Background(), Options{Task: testTask(), Workspace: "/ws"}, Callbacks{})

	got, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, got.Status)
}

func TestExecuteSuppliesDefaultTools(t *testing.T) {
	provider := &fakeProvider{chunks: []domain.StreamChunk{{Type: domain.ChunkDone}}}
	e := New(provider, events.NewBus())

	e.Execute(context.Background(), Options{Task: testTask(), Workspace: "/ws"}, Callbacks{})

	require.NotNil(t, provider.lastOpts)
	names := make([]string, 0, len(provider.lastOpts.Tools))
	for _, tool := range provider.lastOpts.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"create_file", "edit_file", "run_command", "git_operation"}, names)
}

func TestBuildSystemPrompt(t *testing.T) {
	task := aidf.Task{
		Title:            "Fix flaky test",
		Goal:             "Make TestFoo deterministic",
		Requirements:     []string{"No sleeps"},
		DefinitionOfDone: []string{"Test passes 100 runs"},
	}
	ctx := aidf.Context{AgentsContent: "Always run gofmt."}

	prompt := BuildSystemPrompt(task, ctx)
	assert.Contains(t, prompt, "# Project Context")
	assert.Contains(t, prompt, "Always run gofmt.")
	assert.Contains(t, prompt, "# Task: Fix flaky test")
	assert.Contains(t, prompt, "Make TestFoo deterministic")
	assert.Contains(t, prompt, "- No sleeps")
	assert.Contains(t, prompt, "- Test passes 100 runs")
	assert.Contains(t, prompt, "requires explicit user approval")
}

func TestBuildSystemPromptOmitsMissingSections(t *testing.T) {
	prompt := BuildSystemPrompt(aidf.Task{Title: "Tiny"}, aidf.Context{})
	assert.NotContains(t, prompt, "# Project Context")
	assert.NotContains(t, prompt, "## Goal")
	assert.NotContains(t, prompt, "## Requirements")
	assert.Contains(t, prompt, "# Task: Tiny")
}

// providerFunc adapts a function to llm.Provider for one-off test providers.
type providerFunc func(ctx context.Context, opts *llm.SendOptions) (<-chan domain.StreamChunk, error)

func (f providerFunc) Name() string { return "func" }
func (f providerFunc) SendMessage(ctx context.Context, opts *llm.SendOptions) (<-chan domain.StreamChunk, error) {
	return f(ctx, opts)
}
func (f providerFunc) ListModels(ctx context.Context) ([]llm.ModelInfo, error) { return nil, nil }
func (f providerFunc) Capabilities() llm.Capabilities                          { return llm.Capabilities{} }
