package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

const (
	registerFailedMessage = "Registration failed"
	requestFailedMessage  = "Request failed"
	resetSentMessage      = "If the email exists, a reset link has been sent."
)

type registerOptions struct {
	Name     string
	Email    string
	Password string
}

func newRegisterCommand(root *rootOptions) *cobra.Command {
	var opts registerOptions

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the admin API",
		Long:  `Create an account with name, email and password. Registration does not sign in; run "userdash login" afterwards.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withRuntime(cmd, func(stack *runtimeStack) error {
				return runRegister(cmd, stack, opts)
			})
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.Name, "name", "n", "", "display name")
	fs.StringVarP(&opts.Email, "email", "e", "", "account email")
	fs.StringVarP(&opts.Password, "password", "p", "", "account password (prompted when omitted)")

	return cmd
}

func runRegister(cmd *cobra.Command, stack *runtimeStack, opts registerOptions) error {
	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())

	var err error
	if strings.TrimSpace(opts.Name) == "" {
		if opts.Name, err = p.readLine("Name: ", false); err != nil {
			return fmt.Errorf("read name: %w", err)
		}
	}
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

	profile, err := stack.Client.Register(cmd.Context(), opts.Name, opts.Email, opts.Password)
	if err != nil {
		return errors.New(apiFailure(err, registerFailedMessage))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s <%s>. Run `userdash login` to sign in.\n", profile.Name, profile.Email)
	return nil
}

func newForgotPasswordCommand(root *rootOptions) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Request a password reset link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withRuntime(cmd, func(stack *runtimeStack) error {
				if strings.TrimSpace(email) == "" {
					var err error
					p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
					if email, err = p.readLine("Email: ", false); err != nil {
						return fmt.Errorf("read email: %w", err)
					}
				}

				msg, err := stack.Client.ForgotPassword(cmd.Context(), email)
				if err != nil {
					return errors.New(apiFailure(err, requestFailedMessage))
				}
				if strings.TrimSpace(msg) == "" {
					msg = resetSentMessage
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")

	return cmd
}

type resetOptions struct {
	Token    string
	Password string
}

func newResetPasswordCommand(root *rootOptions) *cobra.Command {
	var opts resetOptions

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withRuntime(cmd, func(stack *runtimeStack) error {
				return runResetPassword(cmd, stack, opts)
			})
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.Token, "token", "t", "", "token from the reset email")
	fs.StringVarP(&opts.Password, "password", "p", "", "new password (prompted twice when omitted)")

	return cmd
}

func runResetPassword(cmd *cobra.Command, stack *runtimeStack, opts resetOptions) error {
	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())

	var err error
	if strings.TrimSpace(opts.Token) == "" {
		if opts.Token, err = p.readLine("Reset token: ", false); err != nil {
			return fmt.Errorf("read token: %w", err)
		}
	}
	confirm := opts.Password
	if opts.Password == "" {
		if opts.Password, err = p.readLine("New password: ", true); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if confirm, err = p.readLine("Confirm password: ", true); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	msg, err := stack.Client.ResetPassword(cmd.Context(), opts.Token, opts.Password, confirm)
	if err != nil {
		return errors.New(apiFailure(err, requestFailedMessage))
	}
	if strings.TrimSpace(msg) == "" {
		msg = "Password updated"
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}
