package cmd

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kyleking/gh-runwarden/internal/compare"
	"github.com/kyleking/gh-runwarden/internal/output"
)

func (c *cli) compareCommand() *cobra.Command {
	var (
		asJSON  bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "compare RUN1 RUN2",
		Short: "Compare job durations between two workflow runs.",
		Long: `Fetch the jobs of two workflow runs, pair them by name, and show how long
each took in both runs. Totals only count successful jobs.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, len(args))
			for i, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid run id %q: %w", arg, err)
				}
				ids[i] = id
			}

			client, err := c.client()
			if err != nil {
				return err
			}
			result, err := compare.Runs(cmd.Context(), client, ids[0], ids[1])
			if err != nil {
				return err
			}

			format := output.TextOut
			if asJSON {
				format = output.JSONOut
			}
			return output.WriteComparison(cmd.OutOrStdout(), result, format, !noColor && !color.NoColor)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}
