package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ditloop/ditloop/internal/config"
	"github.com/ditloop/ditloop/internal/render"
	"github.com/ditloop/ditloop/internal/session"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect past execution sessions",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewStore(config.GetPaths().Data)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			render.New(os.Stdout, pretty).Sessions(sessions)
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum sessions to list")

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session with its actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewStore(config.GetPaths().Data)
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load session %s: %w", args[0], err)
			}
			render.New(os.Stdout, pretty).Session(sess)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewStore(config.GetPaths().Data)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Delete(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, show, remove)
	return cmd
}
