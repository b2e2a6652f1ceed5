package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kyleking/gh-runwarden/internal/annotations"
	"github.com/kyleking/gh-runwarden/internal/checkpoint"
	"github.com/kyleking/gh-runwarden/internal/output"
)

func (c *cli) aggregateCommand() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Count failing tests across recent failed runs.",
		Long: `Walk recently failed workflow runs page by page, collect the annotations of
their check runs, and count how often each annotation title appears.

The ranked counts are written to the output file after every page, so an
interrupted pass still leaves the progress made so far on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}

			writer := checkpoint.NewWriter(c.cfg.Aggregation.Output, c.logger)
			driver := annotations.NewDriver(client, client, writer, c.cfg.AggregationOptions(), c.logger)

			result, runErr := driver.Run(cmd.Context())
			if result != nil && top > 0 {
				entries := result.Entries
				if len(entries) > top {
					entries = entries[:top]
				}
				if err := output.WriteReport(cmd.OutOrStdout(), entries, output.TextOut); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}
			cmd.Printf("Wrote %d tests to %s\n", len(result.Entries), writer.Path())
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", checkpoint.DefaultPath, "Report file to write")
	cmd.Flags().String("workflow", "", "Workflow file to scan, e.g. pulsar-ci.yaml (default: all workflows)")
	cmd.Flags().Int("max-pages", 100, "Maximum number of pages of failed runs")
	cmd.Flags().IntVar(&top, "top", 20, "Print the top N tests when done (0 to skip)")
	c.bindFlag(cmd, "aggregation.output", "output")
	c.bindFlag(cmd, "aggregation.workflow", "workflow")
	c.bindFlag(cmd, "aggregation.max-pages", "max-pages")
	return cmd
}
