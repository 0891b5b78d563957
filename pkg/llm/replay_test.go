package llm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ditloop/ditloop/internal/domain"
)

func collect(t *testing.T, ch <-chan domain.StreamChunk) []domain.StreamChunk {
	t.Helper()
	var out []domain.StreamChunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestReplayProviderStreamsTranscript(t *testing.T) {
	transcript := `{"type":"delta","content":"hello "}
{"type":"delta","content":"world"}
{"type":"tool_use","toolUse":{"id":"t1","name":"run_command","arguments":{"command":"ls"}}}
{"type":"done","stopReason":"end_turn"}
`
	path := filepath.Join(t.TempDir(), "t.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(transcript), 0o644))

	p := NewReplayProvider(path)
	ch, err := p.SendMessage(context.Background(), &SendOptions{})
	require.NoError(t, err)

	chunks := collect(t, ch)
	require.Len(t, chunks, 4)
	assert.Equal(t, domain.ChunkDelta, chunks[0].Type)
	assert.Equal(t, "hello ", chunks[0].Content)
	require.NotNil(t, chunks[2].ToolUse)
	assert.Equal(t, "run_command", chunks[2].ToolUse.Name)
	assert.Equal(t, domain.ChunkDone, chunks[3].Type)
}

func TestReplayProviderMissingFile(t *testing.T) {
	p := NewReplayProvider("/does/not/exist.jsonl")
	_, err := p.SendMessage(context.Background(), &SendOptions{})
	assert.Error(t, err)
}

func TestReplayProviderBadLineBecomesErrorChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o644))

	p := NewReplayProvider(path)
	ch, err := p.SendMessage(context.Background(), &SendOptions{})
	require.NoError(t, err)

	chunks := collect(t, ch)
	require.Len(t, chunks, 1)
	assert.Equal(t, domain.ChunkError, chunks[0].Type)
	assert.Error(t, chunks[0].Err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	p := NewReplayProvider("x")
	r.Register(p)

	got, ok := r.Get("replay")
	assert.True(t, ok)
	assert.Same(t, p, got)

	_, ok = r.Get("anthropic")
	assert.False(t, ok)
	assert.Len(t, r.List(), 1)
}
