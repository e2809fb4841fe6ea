package cli

import (
	"fmt"
	"sort"

	"github.com/hiroki-koketsu/upahead/internal/backend"
	"github.com/hiroki-koketsu/upahead/internal/model"
	"github.com/spf13/cobra"
)

func (r *runner) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the backend API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := r.app.Backend.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", r.app.Backend.BaseURL(), h.Status, h.Timestamp)
			return nil
		},
	}
}

// assignmentsCmd talks to the backend's assignment records directly.
func (r *runner) assignmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "Inspect assignments stored by the backend",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List backend assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := r.app.Backend.Assignments(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No assignments.")
				return nil
			}
			for _, a := range items {
				done := " "
				if a.Completed {
					done = "x"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] %s\n", a.ID, done, a.Title)
			}
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", backend.DefaultAssignmentsLimit, "Maximum number of assignments")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show assignment statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := r.app.Backend.AssignmentStats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total %d, completed %d, pending %d, overdue %d\n", s.Total, s.Completed, s.Pending, s.Overdue)
			subjects := make([]string, 0, len(s.BySubject))
			for subject := range s.BySubject {
				subjects = append(subjects, subject)
			}
			sort.Strings(subjects)
			for _, subject := range subjects {
				fmt.Fprintf(out, "  %s: %d\n", subject, s.BySubject[subject])
			}
			return nil
		},
	}

	var undo bool
	done := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark an assignment completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.app.Backend.UpdateAssignment(cmd.Context(), args[0], model.AssignmentUpdate{Completed: model.Ptr(!undo)})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s completed=%t\n", a.ID, a.Completed)
			return nil
		},
	}
	done.Flags().BoolVar(&undo, "undo", false, "Mark as not completed")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := r.app.Backend.DeleteAssignment(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, stats, done, rm)
	return cmd
}

