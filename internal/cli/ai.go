package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hiroki-koketsu/upahead/internal/model"
	"github.com/spf13/cobra"
)

func (r *runner) aiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "Create tasks from a natural language prompt",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "usage",
		Short: "Show today's AI attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := r.app.AI.UsageInfo(cmd.Context())
			if errors.Is(err, model.ErrNotAuthenticated) {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d of %d attempts used, %d remaining\n", usage.Attempts, model.DailyQuota, usage.Remaining)
			if usage.IsBlocked {
				fmt.Fprintln(out, "Daily limit reached. Try again tomorrow.")
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create <prompt>",
		Short: "Send a prompt to the AI task planner",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := r.app.AI.CreateTasksFromPrompt(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Message != "" {
				fmt.Fprintln(out, res.Message)
			}
			for _, t := range res.Tasks {
				fmt.Fprintf(out, "  + %s\n", t.Title)
			}
			fmt.Fprintf(out, "%d attempts remaining today\n", res.RemainingAttempts)

			return r.app.Store.RefreshTasks(cmd.Context())
		},
	})
	return cmd
}
