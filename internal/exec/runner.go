// Package exec provides a small command execution abstraction so callers
// never reach for os/exec directly. Injecting a Runner keeps the executor
// and git layers testable without spawning processes.
package exec

import (
	"bytes"
	"context"
	"errors"
	osexec "os/exec"
	"strings"
)

// Runner executes external commands.
type Runner interface {
	// RunInDir executes an argv-style command in dir and returns combined
	// stdout/stderr.
	RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error)

	// RunShell executes command through `sh -c` in dir and returns stdout
	// and stderr separately.
	RunShell(ctx context.Context, dir, command string) (stdout, stderr []byte, err error)
}

// OSRunner implements Runner using os/exec.
type OSRunner struct {
	// Env overrides environment variables (nil = inherit from parent).
	Env []string
}

// NewOSRunner creates an OS-based command runner.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

func (r *OSRunner) RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if r.Env != nil {
		cmd.Env = r.Env
	}
	return cmd.CombinedOutput()
}

func (r *OSRunner) RunShell(ctx context.Context, dir, command string) ([]byte, []byte, error) {
	cmd := osexec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	if r.Env != nil {
		cmd.Env = r.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// ExitCode extracts the process exit code from a Run error, -1 when the
// process never ran or was killed.
func ExitCode(err error) int {
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// MockRunner implements Runner for testing.
type MockRunner struct {
	// Calls records all invocations in order.
	Calls []MockCall

	// Responses maps a command name (argv) or full shell command line to a
	// canned response.
	Responses map[string]MockResponse
}

// MockCall records a single invocation. Shell indicates RunShell was used,
// in which case Command holds the full command line.
type MockCall struct {
	Name    string
	Args    []string
	Dir     string
	Command string
	Shell   bool
}

// MockResponse defines the response for a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// NewMockRunner creates a mock runner with no canned responses.
func NewMockRunner() *MockRunner {
	return &MockRunner{Responses: make(map[string]MockResponse)}
}

// AddResponse sets the response for a command name or shell command line.
func (m *MockRunner) AddResponse(key string, resp MockResponse) {
	m.Responses[key] = resp
}

func (m *MockRunner) lookup(keys ...string) MockResponse {
	for _, k := range keys {
		if resp, ok := m.Responses[k]; ok {
			return resp
		}
	}
	return MockResponse{}
}

func (m *MockRunner) RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	m.Calls = append(m.Calls, MockCall{Name: name, Args: args, Dir: dir})
	resp := m.lookup(name + " " + strings.Join(args, " "), name)
	return append(resp.Stdout, resp.Stderr...), resp.Err
}

func (m *MockRunner) RunShell(ctx context.Context, dir, command string) ([]byte, []byte, error) {
	m.Calls = append(m.Calls, MockCall{Dir: dir, Command: command, Shell: true})
	resp := m.lookup(command)
	return resp.Stdout, resp.Stderr, resp.Err
}
