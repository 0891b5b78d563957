package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ditloop/ditloop/internal/domain"
)

func TestSessionLifecycle(t *testing.T) {
	s := New("task-1", "/work")
	assert.Equal(t, StatusRunning, s.Status)
	assert.NotEmpty(t, s.ID)

	s.Complete()
	assert.Equal(t, StatusCompleted, s.Status)

	// terminal states stick
	s.Fail("too late")
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Empty(t, s.Error)
}

func TestSessionFail(t *testing.T) {
	s := New("task-1", "/work")
	s.Fail("provider stream died")
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, "provider stream died", s.Error)

	s.Complete()
	assert.Equal(t, StatusFailed, s.Status)
}

func TestProposeAndResolveAction(t *testing.T) {
	s := New("task-1", "/work")

	id1 := s.ProposeAction(domain.ShellCommand{Command: "ls"})
	id2 := s.ProposeAction(domain.FileCreate{Path: "a.txt"})
	require.Len(t, s.Actions, 2)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, ActionProposed, s.Actions[0].Status)
	assert.Nil(t, s.Actions[0].ResolvedAt)

	s.ResolveAction(id1, ActionExecuted, "ok")
	assert.Equal(t, ActionExecuted, s.Actions[0].Status)
	assert.Equal(t, "ok", s.Actions[0].Result)
	assert.NotNil(t, s.Actions[0].ResolvedAt)

	// order preserved
	assert.Equal(t, id2, s.Actions[1].ID)
	assert.Equal(t, ActionProposed, s.Actions[1].Status)
}

func TestResolveUnknownActionIsNoop(t *testing.T) {
	s := New("task-1", "/work")
	s.ProposeAction(domain.ShellCommand{Command: "ls"})
	s.ResolveAction("missing", ActionFailed, "x")
	assert.Equal(t, ActionProposed, s.Actions[0].Status)
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	s := New("task-42", "/repo")
	s.AddMessage(domain.RoleUser, "add a readme")
	s.AddMessage(domain.RoleAssistant, "creating README.md")
	id := s.ProposeAction(domain.FileCreate{Path: "README.md", Content: "# hi"})
	s.ResolveAction(id, ActionExecuted, "Created README.md")
	s.ProposeAction(domain.GitOperation{Operation: domain.GitCommit, Args: map[string]any{"message": "docs"}})
	s.Complete()

	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "task-42", got.TaskID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, domain.RoleUser, got.Messages[0].Role)

	require.Len(t, got.Actions, 2)
	assert.Equal(t, ActionExecuted, got.Actions[0].Status)
	assert.Equal(t, "Created README.md", got.Actions[0].Result)
	fc, ok := got.Actions[0].Action.(domain.FileCreate)
	require.True(t, ok)
	assert.Equal(t, "README.md", fc.Path)
	assert.NotNil(t, got.Actions[0].ResolvedAt)
	assert.Nil(t, got.Actions[1].ResolvedAt)
}

func TestStoreSaveIsIdempotentSnapshot(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	s := New("task", "/repo")
	require.NoError(t, store.Save(ctx, s))

	s.AddMessage(domain.RoleAssistant, "done")
	s.Fail("stream error")
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "stream error", got.Error)
	assert.Len(t, got.Messages, 1)
}

func TestStoreList(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, New("task", "/repo")))
	}

	sessions, err := store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}
