package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/charlesng35/userdash/internal/auth"
	appErrors "github.com/charlesng35/userdash/pkg/errors"
)

const loginFailedMessage = "Login failed"

type loginOptions struct {
	Email    string
	Password string
}

func newLoginCommand(root *rootOptions) *cobra.Command {
	var opts loginOptions

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the admin API",
		Long:  `Sign in with email and password. The issued token is saved so later commands reuse it until it expires or is rejected.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withRuntime(cmd, func(stack *runtimeStack) error {
				return runLogin(cmd, stack, opts)
			})
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.Email, "email", "e", "", "account email")
	fs.StringVarP(&opts.Password, "password", "p", "", "account password (prompted when omitted)")

	return cmd
}

func runLogin(cmd *cobra.Command, stack *runtimeStack, opts loginOptions) error {
	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())

	var err error
	if strings.TrimSpace(opts.Email) == "" {
		if opts.Email, err = p.readLine("Email: ", false); err != nil {
			return fmt.Errorf("read email: %w", err)
		}
	}
	if opts.Password == "" {
		if opts.Password, err = p.readLine("Password: ", true); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	result, err := stack.Client.Login(cmd.Context(), opts.Email, opts.Password)
	if err != nil {
		return errors.New(apiFailure(err, loginFailedMessage))
	}

	session := auth.NewSession(result.Token, &result.User, time.Now())
	if err := stack.Sessions.Set(session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	// Pages cached under a previous account must not leak into this one.
	stack.Cache.Clear()

	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", result.User.Name, result.User.Email)
	if session.ExpiresAt != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Session expires %s\n", session.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

// apiFailure returns the message the API sent, or fallback when the failure
// carried none.
func apiFailure(err error, fallback string) string {
	appErr := appErrors.FromError(err)
	switch appErr.Code {
	case appErrors.CodeServer, appErrors.CodeUnauthorized, appErrors.CodeValidation:
		if msg := strings.TrimSpace(appErr.Message); msg != "" && msg != appErrors.DefaultServerMessage {
			return msg
		}
	}
	return fallback
}
