package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hiroki-koketsu/upahead/internal/model"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func (r *runner) tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage tasks",
	}
	cmd.AddCommand(r.tasksListCmd())
	cmd.AddCommand(r.tasksAddCmd())
	cmd.AddCommand(r.tasksDoneCmd())
	cmd.AddCommand(r.tasksRemoveCmd())
	cmd.AddCommand(r.tasksEditCmd())
	cmd.AddCommand(r.tasksBoostCmd())
	return cmd
}

func (r *runner) requireUser() error {
	if !r.app.Session.IsAuthenticated() {
		return fmt.Errorf("%w: run `upahead login` first", model.ErrNoUser)
	}
	return nil
}

// loadAll pages through the store until the last page is cached.
func (r *runner) loadAll(ctx context.Context) error {
	for r.app.Store.HasMore() {
		before := r.app.Store.Len()
		if err := r.app.Store.LoadMoreTasks(ctx); err != nil {
			return err
		}
		if r.app.Store.Len() == before {
			return nil
		}
	}
	return nil
}

func (r *runner) tasksListCmd() *cobra.Command {
	var (
		filter, sortBy string
		allPages       bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := r.requireUser(); err != nil {
				return err
			}
			f, err := model.ParseFilter(filter)
			if err != nil {
				return err
			}
			by, err := model.ParseSort(sortBy)
			if err != nil {
				return err
			}

			if allPages {
				if err := r.loadAll(cmd.Context()); err != nil {
					return err
				}
			}

			tasks := r.app.Store.TasksByFilter(f)
			model.SortTasksBy(tasks, by)
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
				return nil
			}
			writeTasks(cmd.OutOrStdout(), tasks)
			if r.app.Store.HasMore() {
				fmt.Fprintln(cmd.OutOrStdout(), "\nMore tasks available, use --all-pages.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "all", "View: all, upcoming, important or completed")
	cmd.Flags().StringVarP(&sortBy, "sort", "s", "createdAt", "Order: createdAt, dueDate or issueDate")
	cmd.Flags().BoolVar(&allPages, "all-pages", false, "Load every page before listing")
	return cmd
}

func writeTasks(w io.Writer, tasks []model.Task) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONE\t!\tDUE\tTITLE")
	for _, t := range tasks {
		done, star, due := " ", " ", "-"
		if t.Completed {
			done = "x"
		}
		if t.Important {
			star = "*"
		}
		if t.DueDate != nil {
			due = t.DueDate.Local().Format(dateLayout)
		}
		fmt.Fprintf(tw, "%s\t[%s]\t%s\t%s\t%s\n", t.ID, done, star, due, t.Title)
	}
	tw.Flush()
}

// parseDate accepts a calendar date in local time or an RFC 3339 instant.
func parseDate(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, model.ErrValidation)
	}
	return t, nil
}

func splitTags(s string) []string {
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func (r *runner) tasksAddCmd() *cobra.Command {
	var (
		description, subject, tags string
		issue, due                 string
		important                  bool
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := r.requireUser(); err != nil {
				return err
			}

			in := model.NewTask{
				Title:       strings.Join(args, " "),
				Description: description,
				Subject:     subject,
				Important:   important,
				Tags:        splitTags(tags),
			}
			if issue != "" {
				t, err := parseDate(issue)
				if err != nil {
					return err
				}
				in.IssueDate = &t
			}
			if due != "" {
				t, err := parseDate(due)
				if err != nil {
					return err
				}
				in.DueDate = &t
			}
			if err := in.Validate(time.Now()); err != nil {
				return err
			}

			if err := r.app.Store.AddTask(cmd.Context(), in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %q.\n", in.Title)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "desc", "d", "", "Description")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Subject")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma separated tags")
	cmd.Flags().StringVar(&issue, "issue", "", "Issue date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().BoolVarP(&important, "important", "i", false, "Mark as important")
	return cmd
}

func (r *runner) tasksDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a task's completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := r.requireUser(); err != nil {
				return err
			}
			if err := r.loadAll(cmd.Context()); err != nil {
				return err
			}
			if err := r.app.Store.ToggleTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Toggled %s.\n", args[0])
			return nil
		},
	}
}

func (r *runner) tasksRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := r.requireUser(); err != nil {
				return err
			}
			if err := r.app.Store.DeleteTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
			return nil
		},
	}
}

func (r *runner) tasksEditCmd() *cobra.Command {
	var (
		title, description, subject, tags string
		issue, due                        string
		important                         bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Update fields of a task",
		Long:  "Update fields of a task. A date flag set to \"none\" clears the date.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := r.requireUser(); err != nil {
				return err
			}

			var patch model.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("desc") {
				patch.Description = &description
			}
			if flags.Changed("subject") {
				patch.Subject = &subject
			}
			if flags.Changed("tags") {
				t := splitTags(tags)
				if t == nil {
					t = []string{}
				}
				patch.Tags = &t
			}
			if flags.Changed("important") {
				patch.Important = &important
			}
			var err error
			if flags.Changed("issue") {
				if patch.IssueDate, err = datePatch(issue); err != nil {
					return err
				}
			}
			if flags.Changed("due") {
				if patch.DueDate, err = datePatch(due); err != nil {
					return err
				}
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to change: %w", model.ErrValidation)
			}
			if err := r.loadAll(cmd.Context()); err != nil {
				return err
			}

			if err := r.app.Store.UpdateTask(cmd.Context(), args[0], patch); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s.\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Title")
	cmd.Flags().StringVarP(&description, "desc", "d", "", "Description")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Subject")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma separated tags")
	cmd.Flags().StringVar(&issue, "issue", "", "Issue date (YYYY-MM-DD or none)")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD or none)")
	cmd.Flags().BoolVarP(&important, "important", "i", false, "Important flag")
	return cmd
}

func datePatch(s string) (model.DatePatch, error) {
	if s == "" || s == "none" {
		return model.ClearDate(), nil
	}
	t, err := parseDate(s)
	if err != nil {
		return model.DatePatch{}, err
	}
	return model.SetDate(t), nil
}

func (r *runner) tasksBoostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boost <id>",
		Short: "Show a motivational note for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := r.requireUser(); err != nil {
				return err
			}
			if err := r.loadAll(cmd.Context()); err != nil {
				return err
			}
			for _, t := range r.app.Store.Tasks() {
				if t.ID == args[0] {
					b := r.app.Booster.Boost(t)
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", b.Kind, b.Content)
					return nil
				}
			}
			return model.ErrTaskNotFound
		},
	}
}
