// Package executor applies approved actions to the workspace. File mutations
// are backed up first so any execution can be rolled back; shell commands
// pass a blocklist and run with a bounded timeout. Execute never panics and
// never returns an error: every failure lands in the result.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ditloop/ditloop/internal/domain"
	"github.com/ditloop/ditloop/internal/events"
	"github.com/ditloop/ditloop/internal/exec"
	"github.com/ditloop/ditloop/internal/gitops"
)

// DefaultTimeout bounds shell command execution when no override is set.
const DefaultTimeout = 30 * time.Second

// Result is the outcome of executing one action.
type Result struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// backup records where a file's pre-execution content was copied.
type backup struct {
	originalPath string
	backupPath   string
}

// Executor applies actions inside one workspace.
type Executor struct {
	workspace string
	timeout   time.Duration
	bus       *events.Bus
	runner    exec.Runner
	git       *gitops.Service

	mu      sync.Mutex
	backups map[string]backup
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout overrides the shell command timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithRunner injects the command runner (tests use exec.MockRunner).
func WithRunner(r exec.Runner) Option {
	return func(e *Executor) { e.runner = r }
}

// WithGit wires git_operation actions to a git service. Without it they
// resolve to a delegation notice.
func WithGit(g *gitops.Service) Option {
	return func(e *Executor) { e.git = g }
}

// New creates an executor rooted at workspace, publishing on bus.
func New(workspace string, bus *events.Bus, opts ...Option) *Executor {
	e := &Executor{
		workspace: workspace,
		timeout:   DefaultTimeout,
		bus:       bus,
		runner:    exec.NewOSRunner(),
		backups:   make(map[string]backup),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute applies one action and returns its result. The result's ID keys a
// later Rollback when the action mutated a file.
func (e *Executor) Execute(ctx context.Context, action domain.Action) Result {
	res := Result{ID: uuid.NewString()}

	var path string
	var output string
	var err error

	switch a := action.(type) {
	case domain.FileCreate:
		path = a.Path
		output, err = e.executeFileCreate(res.ID, a)
	case domain.FileEdit:
		path = a.Path
		output, err = e.executeFileEdit(res.ID, a)
	case domain.ShellCommand:
		output, err = e.executeShell(ctx, a)
	case domain.GitOperation:
		output, err = e.executeGit(ctx, a)
	default:
		err = fmt.Errorf("unknown action type %q", action.ActionType())
	}

	if err != nil {
		res.Error = err.Error()
		e.bus.Emit(events.ActionFailed, events.ActionFailedEvent{
			ID:        res.ID,
			Type:      string(action.ActionType()),
			Error:     res.Error,
			Workspace: e.workspace,
		})
		return res
	}

	res.Success = true
	res.Output = output
	e.bus.Emit(events.ActionExecuted, events.ActionExecutedEvent{
		ID:        res.ID,
		Type:      string(action.ActionType()),
		Path:      path,
		Workspace: e.workspace,
	})
	return res
}

// Backups reports how many rollback snapshots are being held. Backups live
// for the process lifetime; there is no eviction.
func (e *Executor) Backups() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.backups)
}

// Rollback restores the file an execution mutated from its backup. It is
// at-most-once per execution and reports false when no backup exists.
func (e *Executor) Rollback(id string) bool {
	e.mu.Lock()
	b, ok := e.backups[id]
	e.mu.Unlock()
	if !ok {
		return false
	}

	// restore first; a failed copy keeps the backup so the caller can retry
	if err := copyFile(b.backupPath, b.originalPath); err != nil {
		return false
	}

	e.mu.Lock()
	delete(e.backups, id)
	e.mu.Unlock()
	os.Remove(b.backupPath)

	e.bus.Emit(events.ActionRolledBack, events.ActionRolledBackEvent{
		ID:        id,
		Workspace: e.workspace,
	})
	return true
}

func (e *Executor) executeFileCreate(id string, a domain.FileCreate) (string, error) {
	path := e.resolve(a.Path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create directories: %w", err)
	}

	// Overwriting an existing file behaves as an edit: back it up so the
	// create is rollbackable.
	if _, err := os.Stat(path); err == nil {
		if err := e.backupFile(id, path); err != nil {
			return "", err
		}
	}

	if err := os.WriteFile(path, []byte(a.Content), 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("Created %s", a.Path), nil
}

func (e *Executor) executeFileEdit(id string, a domain.FileEdit) (string, error) {
	path := e.resolve(a.Path)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	content := string(data)

	if !strings.Contains(content, a.OldContent) {
		return "", fmt.Errorf("cannot find content to replace in %s", a.Path)
	}

	if err := e.backupFile(id, path); err != nil {
		return "", err
	}

	updated := strings.Replace(content, a.OldContent, a.NewContent, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("Edited %s", a.Path), nil
}

func (e *Executor) executeShell(ctx context.Context, a domain.ShellCommand) (string, error) {
	if err := ValidateCommand(a.Command); err != nil {
		return "", err
	}

	dir := e.workspace
	if a.Cwd != "" {
		dir = e.resolve(a.Cwd)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	stdout, stderr, err := e.runner.RunShell(ctx, dir, a.Command)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("command timed out after %s", e.timeout)
		}
		detail := strings.TrimSpace(string(stderr))
		if detail == "" {
			detail = strings.TrimSpace(string(stdout))
		}
		if code := exec.ExitCode(err); code >= 0 {
			return "", fmt.Errorf("command failed (exit %d): %s", code, detail)
		}
		return "", fmt.Errorf("command failed: %w", err)
	}
	return string(stdout), nil
}

func (e *Executor) executeGit(ctx context.Context, a domain.GitOperation) (string, error) {
	if e.git == nil {
		return fmt.Sprintf("Git operation %q delegated to git module", a.Operation), nil
	}
	return e.git.Apply(ctx, a.Operation, a.Args)
}

// backupFile copies path to the scratch dir and records it under the
// execution id.
func (e *Executor) backupFile(id, path string) error {
	backupPath := filepath.Join(os.TempDir(), "ditloop-backup-"+id)
	if err := copyFile(path, backupPath); err != nil {
		return fmt.Errorf("backup file: %w", err)
	}

	e.mu.Lock()
	e.backups[id] = backup{originalPath: path, backupPath: backupPath}
	e.mu.Unlock()
	return nil
}

// resolve joins a relative action path onto the workspace root.
func (e *Executor) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.workspace, path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
