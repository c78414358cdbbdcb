package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withRuntime(cmd, func(stack *runtimeStack) error {
				if err := stack.Sessions.Clear(); err != nil {
					return fmt.Errorf("clear session: %w", err)
				}
				stack.Cache.Clear()
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}
