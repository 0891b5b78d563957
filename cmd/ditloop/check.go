package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ditloop/ditloop/internal/executor"
	"github.com/ditloop/ditloop/internal/render"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <command...>",
		Short: "Test a shell command against the safety blocklist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := strings.Join(args, " ")
			out := render.New(os.Stdout, pretty)

			if err := executor.ValidateCommand(command); err != nil {
				out.Result(command, false, err.Error())
				os.Exit(1)
			}
			out.Result(command, true, "")
			return nil
		},
	}
}
