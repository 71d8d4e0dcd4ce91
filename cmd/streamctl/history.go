package main

import (
	"github.com/spf13/cobra"
)

func newHistoryCommand(g *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "List recorded reconciliation runs, or the changes of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, cfg, err := g.open()
			if err != nil {
				return err
			}
			defer application.Close()

			out, err := g.writer(cfg)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				changes, err := application.RunChanges(args[0])
				if err != nil {
					return err
				}
				return out.Changes(changes)
			}

			runs, err := application.History(limit)
			if err != nil {
				return err
			}
			return out.Runs(runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}

func newKindsCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the resource types streamctl can reconcile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, cfg, err := g.open()
			if err != nil {
				return err
			}
			defer application.Close()

			out, err := g.writer(cfg)
			if err != nil {
				return err
			}
			return out.Kinds(application.Kinds())
		},
	}
}
