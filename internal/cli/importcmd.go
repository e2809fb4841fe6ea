package cli

import (
	"fmt"
	"os"

	"github.com/hiroki-koketsu/upahead/internal/importer"
	"github.com/spf13/cobra"
)

func (r *runner) importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Bulk import tasks from a CSV or Excel file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := r.requireUser(); err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := r.app.Importer.Upload(cmd.Context(), args[0], f)
			if res == nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Message != "" {
				fmt.Fprintln(out, res.Message)
			}
			fmt.Fprintf(out, "%d rows: %d imported, %d rejected\n", res.TotalRows, res.ValidRows, res.InvalidRows)
			for _, re := range res.Errors {
				fmt.Fprintf(out, "  row %d %s: %s\n", re.Row, re.Field, re.Message)
			}
			return err
		},
	}

	var output string
	template := &cobra.Command{
		Use:   "template",
		Short: "Write the CSV import template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "-" {
				return importer.WriteTemplate(cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := importer.WriteTemplate(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s.\n", output)
			return nil
		},
	}
	template.Flags().StringVarP(&output, "output", "o", importer.TemplateFilename, "Destination file, - for stdout")
	cmd.AddCommand(template)
	return cmd
}
