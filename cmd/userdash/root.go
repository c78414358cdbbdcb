package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "userdash",
		Short: "Browse the admin API user directory from a terminal",
		Long: `userdash signs in to the admin API and shows a paginated, searchable
list of users. Search input is debounced and pages already seen are served
from a local cache.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration directory or file")

	cmd.AddCommand(
		newLoginCommand(opts),
		newRegisterCommand(opts),
		newForgotPasswordCommand(opts),
		newResetPasswordCommand(opts),
		newLogoutCommand(opts),
		newWhoamiCommand(opts),
		newUsersCommand(opts),
	)
	return cmd
}

// withRuntime bootstraps the runtime for a single command and tears it down
// afterwards, reporting both the command and shutdown errors.
func (o *rootOptions) withRuntime(cmd *cobra.Command, fn func(*runtimeStack) error) (err error) {
	stack, err := bootstrapRuntime(o.configPath)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, stack.Shutdown(cmd.Context()))
	}()

	return fn(stack)
}
