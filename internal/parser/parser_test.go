package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ditloop/ditloop/internal/domain"
)

func TestParseToolUseFileCreate(t *testing.T) {
	for _, name := range []string{"create_file", "write_file"} {
		a := ParseToolUse(domain.ToolUse{
			Name:      name,
			Arguments: map[string]any{"path": "src/main.go", "content": "package main\n"},
		})
		require.NotNil(t, a, name)
		fc, ok := a.(domain.FileCreate)
		require.True(t, ok)
		assert.Equal(t, "src/main.go", fc.Path)
		assert.Equal(t, "package main\n", fc.Content)
	}
}

func TestParseToolUseFileEditKeyFallback(t *testing.T) {
	snake := ParseToolUse(domain.ToolUse{
		Name: "edit_file",
		Arguments: map[string]any{
			"path":        "a.txt",
			"old_content": "foo",
			"new_content": "bar",
		},
	})
	camel := ParseToolUse(domain.ToolUse{
		Name: "replace_in_file",
		Arguments: map[string]any{
			"path":       "a.txt",
			"oldContent": "foo",
			"newContent": "bar",
		},
	})

	for _, a := range []domain.Action{snake, camel} {
		require.NotNil(t, a)
		fe := a.(domain.FileEdit)
		assert.Equal(t, "foo", fe.OldContent)
		assert.Equal(t, "bar", fe.NewContent)
	}
}

func TestParseToolUseFileEditMissingContentDefaultsEmpty(t *testing.T) {
	a := ParseToolUse(domain.ToolUse{
		Name:      "edit_file",
		Arguments: map[string]any{"path": "a.txt"},
	})
	require.NotNil(t, a)
	fe := a.(domain.FileEdit)
	assert.Empty(t, fe.OldContent)
	assert.Empty(t, fe.NewContent)
}

func TestParseToolUseShellCommand(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"run_command", map[string]any{"command": "go test ./..."}, "go test ./..."},
		{"execute_command", map[string]any{"cmd": "ls -la"}, "ls -la"},
		{"shell", map[string]any{"command": "make build", "cwd": "/tmp"}, "make build"},
	}
	for _, tt := range tests {
		a := ParseToolUse(domain.ToolUse{Name: tt.name, Arguments: tt.args})
		require.NotNil(t, a, tt.name)
		sc := a.(domain.ShellCommand)
		assert.Equal(t, tt.want, sc.Command)
	}
}

func TestParseToolUseGitOperation(t *testing.T) {
	a := ParseToolUse(domain.ToolUse{
		Name: "git_operation",
		Arguments: map[string]any{
			"operation": "commit",
			"args":      map[string]any{"message": "fix parser"},
		},
	})
	require.NotNil(t, a)
	g := a.(domain.GitOperation)
	assert.Equal(t, domain.GitCommit, g.Operation)
	assert.Equal(t, "fix parser", g.Args["message"])
}

func TestParseToolUseRejectsBadInput(t *testing.T) {
	tests := []struct {
		desc string
		use  domain.ToolUse
	}{
		{"unknown tool", domain.ToolUse{Name: "launch_rockets", Arguments: map[string]any{}}},
		{"missing path", domain.ToolUse{Name: "create_file", Arguments: map[string]any{"content": "x"}}},
		{"missing command", domain.ToolUse{Name: "run_command", Arguments: map[string]any{}}},
		{"unknown git op", domain.ToolUse{Name: "git", Arguments: map[string]any{"operation": "rebase"}}},
		{"nil arguments", domain.ToolUse{Name: "shell"}},
	}
	for _, tt := range tests {
		assert.Nil(t, ParseToolUse(tt.use), tt.desc)
	}
}

func TestParseMarkdownShellBlocks(t *testing.T) {
	text := "Run this:\n```bash\nnpm install\n```\nthen\n```sh\n  go vet ./...  \n```\n"
	actions := ParseMarkdown(text)
	require.Len(t, actions, 2)
	assert.Equal(t, domain.ShellCommand{Command: "npm install"}, actions[0])
	assert.Equal(t, domain.ShellCommand{Command: "go vet ./..."}, actions[1])
}

func TestParseMarkdownFileMarker(t *testing.T) {
	text := "```go\n// file: cmd/main.go\npackage main\n\nfunc main() {}\n```\n"
	actions := ParseMarkdown(text)
	require.Len(t, actions, 1)
	fc := actions[0].(domain.FileCreate)
	assert.Equal(t, "cmd/main.go", fc.Path)
	assert.Equal(t, "package main\n\nfunc main() {}", fc.Content)
}

func TestParseMarkdownIgnoresPlainBlocks(t *testing.T) {
	text := "```json\n{\"a\": 1}\n```\nand\n```\nplain text\n```\n"
	assert.Empty(t, ParseMarkdown(text))
}

func TestParseMarkdownPreservesOrder(t *testing.T) {
	text := "```bash\nfirst\n```\n```python\n// file: gen.py\nprint(1)\n```\n```shell\nlast\n```\n"
	actions := ParseMarkdown(text)
	require.Len(t, actions, 3)
	assert.Equal(t, domain.ActionShellCommand, actions[0].ActionType())
	assert.Equal(t, domain.ActionFileCreate, actions[1].ActionType())
	assert.Equal(t, domain.ActionShellCommand, actions[2].ActionType())
	assert.Equal(t, "last", actions[2].(domain.ShellCommand).Command)
}

func TestGenerateDiffHeader(t *testing.T) {
	diff := GenerateDiff("a", "b", "x.txt")
	lines := strings.Split(diff, "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "--- a/x.txt", lines[0])
	assert.Equal(t, "+++ b/x.txt", lines[1])
}

func TestGenerateDiffSingleChange(t *testing.T) {
	old := "one\ntwo\nthree"
	new := "one\nTWO\nthree"
	diff := GenerateDiff(old, new, "f")
	assert.Contains(t, diff, "@@ -2 +2 @@")
	assert.Contains(t, diff, "-two")
	assert.Contains(t, diff, "+TWO")
	// trailing context line after the hunk closes
	assert.Contains(t, diff, " three")
}

func TestGenerateDiffAddedLines(t *testing.T) {
	diff := GenerateDiff("a", "a\nb\nc", "f")
	assert.Contains(t, diff, "+b")
	assert.Contains(t, diff, "+c")
	assert.NotContains(t, diff, "-a")
}

func TestGenerateDiffIdentical(t *testing.T) {
	diff := GenerateDiff("same\ntext", "same\ntext", "f")
	assert.Equal(t, "--- a/f\n+++ b/f", diff)
}
