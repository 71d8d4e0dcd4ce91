package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSandboxCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Manage the local sandbox backend",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Remove every resource from the sandbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, _, err := g.open()
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.ResetSandbox(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(g.stdout, "Sandbox reset")
			return nil
		},
	})
	return cmd
}
