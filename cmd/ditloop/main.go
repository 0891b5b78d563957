// Package main provides the ditloop CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	pretty  = true
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ditloop",
		Short: "DitLoop - approval-gated AI coding assistant",
		Long: `DitLoop runs AI-proposed file edits, shell commands, and git operations
against your repository, gated behind explicit approval.

Usage modes:
  ditloop run <task.md>    Execute a task against the workspace
  ditloop sessions         Inspect past execution sessions
  ditloop check <command>  Test a shell command against the blocklist`,
		Version: version,
	}

	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "Pretty print output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "exec", Title: "Execution:"},
		&cobra.Group{ID: "history", Title: "History:"},
	)

	run := runCmd()
	run.GroupID = "exec"
	rootCmd.AddCommand(run)

	check := checkCmd()
	check.GroupID = "exec"
	rootCmd.AddCommand(check)

	sessions := sessionsCmd()
	sessions.GroupID = "history"
	rootCmd.AddCommand(sessions)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
