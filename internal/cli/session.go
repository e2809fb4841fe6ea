package cli

import (
	"fmt"

	"github.com/hiroki-koketsu/upahead/internal/model"
	"github.com/spf13/cobra"
)

func (r *runner) loginCmd() *cobra.Command {
	var showToken bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := r.app.Session.SignIn(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", u.DisplayName, u.ID)
			if showToken {
				token, err := r.app.Session.Token(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showToken, "token", false, "Print the ID token")
	return cmd
}

func (r *runner) logoutCmd() *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !r.app.Session.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			if purge {
				if r.app.LocalTasks == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Tasks are kept by the server, nothing to purge.")
				} else {
					n, err := r.app.LocalTasks.Clear(cmd.Context(), r.app.Session.UserID())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d local tasks.\n", n)
				}
			}
			if err := r.app.Session.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "Delete this user's locally stored tasks")
	return cmd
}

func (r *runner) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u := r.app.Session.User()
			if u == nil {
				return model.ErrNoUser
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\n", u.DisplayName, u.Email)
			fmt.Fprintf(out, "id: %s\n", u.ID)
			return nil
		},
	}
}
