package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/workboard/internal/identity"
)

var loginCmd = &cobra.Command{
	Use:         "login <user-id>",
	Short:       "Remember the user id that activity is attributed to",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{"no-store": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := identity.NewResolver().Login(args[0]); err != nil {
			return fmt.Errorf("saving identity: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", args[0])
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:         "logout",
	Short:       "Forget the stored user id",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"no-store": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := identity.NewResolver().Logout(); err != nil {
			return fmt.Errorf("removing identity: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:         "whoami",
	Short:       "Print the acting user id",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"no-store": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := identity.NewResolver().Current()
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return err
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}
