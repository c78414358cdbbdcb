package main

import (
	"errors"

	"github.com/spf13/cobra"

	appErrors "github.com/charlesng35/userdash/pkg/errors"
)

var errNotSignedIn = appErrors.ErrUnauthorized.WithMessage("not signed in; run `userdash login`")

func newWhoamiCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withRuntime(cmd, func(stack *runtimeStack) error {
				if !stack.Sessions.IsAuthenticated() {
					return errNotSignedIn
				}

				profile, err := stack.Client.Profile(cmd.Context())
				if err != nil {
					if errors.Is(err, appErrors.ErrUnauthorized) {
						return errNotSignedIn
					}
					return err
				}

				renderProfile(cmd.OutOrStdout(), profile)
				return nil
			})
		},
	}
}
