package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ditloop/ditloop/internal/aidf"
	"github.com/ditloop/ditloop/internal/approval"
	"github.com/ditloop/ditloop/internal/config"
	"github.com/ditloop/ditloop/internal/domain"
	"github.com/ditloop/ditloop/internal/engine"
	"github.com/ditloop/ditloop/internal/events"
	"github.com/ditloop/ditloop/internal/executor"
	"github.com/ditloop/ditloop/internal/gitops"
	"github.com/ditloop/ditloop/internal/parser"
	"github.com/ditloop/ditloop/internal/render"
	"github.com/ditloop/ditloop/internal/session"
	"github.com/ditloop/ditloop/pkg/llm"
)

func runCmd() *cobra.Command {
	var (
		workspace     string
		replayPath    string
		model         string
		autoApprove   bool
		rollbackOnErr bool
		allowCommands []string
		denyCommands  []string
		allowPaths    []string
		denyPaths     []string
	)

	cmd := &cobra.Command{
		Use:   "run <task.md>",
		Short: "Execute a task file against the workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := config.Env()

			if workspace == "" {
				workspace = env.Workspace
			}
			if workspace == "" {
				workspace, _ = os.Getwd()
			}
			if model == "" {
				model = env.Model
			}

			task, err := aidf.LoadTask(args[0])
			if err != nil {
				return fmt.Errorf("load task: %w", err)
			}

			registry := llm.NewRegistry()
			if replayPath != "" {
				registry.Register(llm.NewReplayProvider(replayPath))
			}
			provider, ok := registry.Get(providerName(env, replayPath))
			if !ok {
				return fmt.Errorf("no provider configured (use --replay or set DITLOOP_PROVIDER to a registered provider)")
			}

			store, err := session.NewStore(config.GetPaths().Data)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer store.Close()

			bus := events.NewBus()
			out := render.New(os.Stdout, pretty)

			policy := buildPolicy(allowCommands, denyCommands, allowPaths, denyPaths)
			approver := approval.NewEngine(bus, workspace, approval.WithPolicy(policy))

			execOpts := []executor.Option{
				executor.WithGit(gitops.NewService(workspace, nil)),
			}
			if env.CommandTimeout > 0 {
				execOpts = append(execOpts, executor.WithTimeout(env.CommandTimeout))
			}
			exec := executor.New(workspace, bus, execOpts...)

			eng := engine.New(provider, bus, engine.WithStore(store))

			var proposed []approval.Proposal
			sess := eng.Execute(cmd.Context(), engine.Options{
				Task:      task,
				Context:   aidf.LoadContext(workspace),
				Workspace: workspace,
				Model:     model,
				MaxTokens: env.MaxTokens,
			}, engine.Callbacks{
				OnTextDelta: func(text string) { out.Printf("%s", text) },
				OnActionProposed: func(a domain.Action, id string) {
					proposed = append(proposed, approval.Proposal{Action: a, TrackingID: id})
				},
				OnError: func(err error) {
					out.Println("\nExecution failed: %v", err)
				},
			})
			out.Println("")

			if sess.Status == session.StatusFailed {
				return fmt.Errorf("session %s failed: %s", sess.ID, sess.Error)
			}
			if len(proposed) == 0 {
				out.Println("No actions proposed.")
				return nil
			}

			out.Println("\nProposed actions:")
			for i, p := range proposed {
				out.Action(i+1, p.Action)
			}

			resultCh := approver.Request(withDiffs(proposed, workspace))
			if autoApprove || env.AutoApprove {
				approver.ApproveAll()
			} else {
				if err := promptDecisions(approver, out); err != nil {
					return err
				}
			}
			result := <-resultCh

			for _, q := range result.Rejected {
				sess.ResolveAction(q.TrackingID, session.ActionRejected, q.Reason)
				out.Result(domain.Describe(q.Action), false, "rejected: "+q.Reason)
			}

			return runApproved(cmd.Context(), sess, store, exec, out, result.Approved, rollbackOnErr)
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace root (default: current directory)")
	cmd.Flags().StringVar(&replayPath, "replay", "", "Replay a provider transcript (JSONL) instead of a live provider")
	cmd.Flags().StringVar(&model, "model", "", "Model to request from the provider")
	cmd.Flags().BoolVarP(&autoApprove, "yes", "y", false, "Approve all proposed actions without prompting")
	cmd.Flags().BoolVar(&rollbackOnErr, "rollback-on-failure", false, "Roll back executed file changes when a later action fails")
	cmd.Flags().StringSliceVar(&allowCommands, "allow-command", nil, `Auto-approve command pattern (e.g. "git *")`)
	cmd.Flags().StringSliceVar(&denyCommands, "deny-command", nil, "Auto-reject command pattern")
	cmd.Flags().StringSliceVar(&allowPaths, "allow-path", nil, `Auto-approve file path glob (e.g. "docs/**")`)
	cmd.Flags().StringSliceVar(&denyPaths, "deny-path", nil, "Auto-reject file path glob")

	return cmd
}

func providerName(env *config.DitLoopEnv, replayPath string) string {
	if replayPath != "" {
		return "replay"
	}
	return env.Provider
}

func buildPolicy(allowCmds, denyCmds, allowPaths, denyPaths []string) *approval.Policy {
	p := approval.NewPolicy()
	p.AllowCommands(allowCmds...)
	p.DenyCommands(denyCmds...)
	p.AllowFiles(allowPaths...)
	p.DenyFiles(denyPaths...)
	return p
}

// withDiffs fills in display diffs for file edits before they reach the
// approval prompt.
func withDiffs(proposals []approval.Proposal, workspace string) []approval.Proposal {
	out := make([]approval.Proposal, len(proposals))
	for i, p := range proposals {
		if fe, ok := p.Action.(domain.FileEdit); ok && fe.Diff == "" {
			fe.Diff = parser.GenerateDiff(fe.OldContent, fe.NewContent, fe.Path)
			p.Action = fe
		}
		out[i] = p
	}
	return out
}

// promptDecisions walks the pending queue interactively. Outside a terminal
// everything pending is rejected: unattended runs must opt in via --yes.
func promptDecisions(approver *approval.Engine, out *render.Renderer) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		for _, q := range approver.Pending() {
			if err := approver.Reject(q.ID, "non-interactive run without --yes"); err != nil {
				return err
			}
		}
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	for _, q := range approver.Pending() {
		out.Prompt(q)
		out.Printf("  approve? [y]es / [n]o / [a]ll / [q]uit: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			if err := approver.Approve(q.ID); err != nil {
				return err
			}
		case "a", "all":
			approver.ApproveAll()
			return nil
		case "q", "quit":
			for _, rest := range approver.Pending() {
				if err := approver.Reject(rest.ID, "aborted by user"); err != nil {
					return err
				}
			}
			return nil
		default:
			if err := approver.Reject(q.ID, "rejected by user"); err != nil {
				return err
			}
		}
	}
	return nil
}

// runApproved executes approved actions in order, recording outcomes on the
// session. With rollback enabled, a failure restores the files earlier
// actions touched, newest first.
func runApproved(ctx context.Context, sess *session.Session, store *session.Store, exec *executor.Executor, out *render.Renderer, approved []approval.QueuedAction, rollbackOnErr bool) error {
	var executedIDs []string
	var failed bool

	for _, q := range approved {
		action := q.Effective()
		res := exec.Execute(ctx, action)

		trackingID := q.TrackingID
		if res.Success {
			sess.ResolveAction(trackingID, session.ActionExecuted, res.Output)
			out.Result(domain.Describe(action), true, res.Output)
			executedIDs = append(executedIDs, res.ID)
		} else {
			sess.ResolveAction(trackingID, session.ActionFailed, res.Error)
			out.Result(domain.Describe(action), false, res.Error)
			failed = true
			if rollbackOnErr {
				for i := len(executedIDs) - 1; i >= 0; i-- {
					if exec.Rollback(executedIDs[i]) {
						out.Println("  rolled back execution %s", executedIDs[i])
					}
				}
			}
			break
		}
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Save(saveCtx, sess); err != nil {
		out.Println("warning: failed to persist session: %v", err)
	}

	if failed {
		return fmt.Errorf("one or more actions failed")
	}
	return nil
}
