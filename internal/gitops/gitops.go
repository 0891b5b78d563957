// Package gitops turns git_operation actions into git invocations. All
// commands run through an injected exec.Runner so tests assert on argument
// construction without a real repository.
package gitops

import (
	"context"
	"fmt"
	"strings"

	"github.com/ditloop/ditloop/internal/domain"
	"github.com/ditloop/ditloop/internal/exec"
)

// Service executes git operations inside one workspace.
type Service struct {
	workspace string
	runner    exec.Runner
}

// NewService creates a git service rooted at workspace.
func NewService(workspace string, runner exec.Runner) *Service {
	if runner == nil {
		runner = exec.NewOSRunner()
	}
	return &Service{workspace: workspace, runner: runner}
}

// Apply runs one git operation and returns its trimmed output.
func (s *Service) Apply(ctx context.Context, op domain.GitOp, args map[string]any) (string, error) {
	gitArgs, err := buildArgs(op, args)
	if err != nil {
		return "", err
	}

	out, err := s.runner.RunInDir(ctx, s.workspace, "git", gitArgs...)
	output := strings.TrimSpace(string(out))
	if err != nil {
		if output != "" {
			return "", fmt.Errorf("git %s: %s", op, output)
		}
		return "", fmt.Errorf("git %s: %w", op, err)
	}
	return output, nil
}

// buildArgs maps an operation plus its argument map onto a git argv.
func buildArgs(op domain.GitOp, args map[string]any) ([]string, error) {
	switch op {
	case domain.GitCommit:
		message, _ := args["message"].(string)
		if message == "" {
			return nil, fmt.Errorf("git commit: message is required")
		}
		return []string{"commit", "-m", message}, nil

	case domain.GitBranch:
		name, _ := args["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("git branch: name is required")
		}
		return []string{"branch", name}, nil

	case domain.GitPush:
		out := []string{"push", stringOr(args, "remote", "origin")}
		if branch, _ := args["branch"].(string); branch != "" {
			out = append(out, branch)
		}
		return out, nil

	case domain.GitPull:
		out := []string{"pull", stringOr(args, "remote", "origin")}
		if branch, _ := args["branch"].(string); branch != "" {
			out = append(out, branch)
		}
		return out, nil

	case domain.GitStage:
		files := stringSlice(args["files"])
		if len(files) == 0 {
			return []string{"add", "-A"}, nil
		}
		return append([]string{"add", "--"}, files...), nil

	case domain.GitCheckout:
		ref, _ := args["ref"].(string)
		if ref == "" {
			ref, _ = args["branch"].(string)
		}
		if ref == "" {
			return nil, fmt.Errorf("git checkout: ref is required")
		}
		if create, _ := args["create"].(bool); create {
			return []string{"checkout", "-b", ref}, nil
		}
		return []string{"checkout", ref}, nil

	default:
		return nil, fmt.Errorf("unknown git operation %q", op)
	}
}

func stringOr(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// stringSlice accepts []string or the []any that json decoding produces.
func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
