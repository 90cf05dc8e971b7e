package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onyxprism/prism/api"
)

func newLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			err = withSpinner(cmd, "Signing in...", func() error {
				_, err := a.client.Login(cmd.Context(), email, pw)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed in successfully!")
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newSignupCmd() *cobra.Command {
	var req api.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			pw, err := readPassword(cmd, req.Password)
			if err != nil {
				return err
			}
			req.Password = pw
			if err := a.client.Signup(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created. Run 'prism login' to sign in.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.UserName, "username", "u", "", "display name")
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the access token and the connected database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := appFrom(cmd).client.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "You have been successfully logged out.")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and connected database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			u, err := a.client.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:     %s\n", u.Username)
			fmt.Fprintf(out, "Email:    %s\n", u.Email)
			fmt.Fprintf(out, "ID:       %s\n", u.UserID)
			if db := a.store.ConnectedDatabase(); db != nil {
				fmt.Fprintf(out, "Database: %s (%s, %s)\n", db.Database, db.DBType, db.DBID)
			} else {
				fmt.Fprintln(out, "Database: none")
			}
			return nil
		},
	}
}
