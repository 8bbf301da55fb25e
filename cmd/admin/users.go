package main

import (
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errEmptyPassword = errors.New("password must not be empty")
)

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter password: ")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}

func (cli *commandLine) createAdminCmd() *cobra.Command {
	var email, password, firstName, lastName string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a platform administrator or promote an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				pwd, err := promptPassword(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				password = pwd
			}

			ctx := cmd.Context()
			a, err := cli.openApp(ctx, cli.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.Services.Auth.CreateAdmin(ctx, email, password, firstName, lastName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s ready (id %s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "administrator email")
	cmd.Flags().StringVar(&password, "password", "", "password; prompted when omitted")
	cmd.Flags().StringVar(&firstName, "first-name", "Platform", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "Admin", "last name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Reset a user's password; the new password is prompted",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptPassword(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := cli.openApp(ctx, cli.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Services.Auth.ResetPassword(ctx, email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password reset for %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
