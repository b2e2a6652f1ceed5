package cmd

import (
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kyleking/gh-runwarden/internal/app"
	"github.com/kyleking/gh-runwarden/internal/checkpoint"
	"github.com/kyleking/gh-runwarden/internal/frequency"
	"github.com/kyleking/gh-runwarden/internal/output"
)

func (c *cli) reportCommand() *cobra.Command {
	var (
		file        string
		filter      string
		limit       int
		asJSON      bool
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the failing-test report written by aggregate.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				file = c.cfg.Aggregation.Output
			}
			entries, err := checkpoint.Read(file)
			if err != nil {
				return err
			}

			if interactive {
				var updated time.Time
				if info, err := os.Stat(file); err == nil {
					updated = info.ModTime()
				}
				_, err := tea.NewProgram(app.New(entries, file, updated), tea.WithAltScreen()).Run()
				return err
			}

			entries = frequency.Filter(entries, filter)
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			format := output.TextOut
			if asJSON {
				format = output.JSONOut
			}
			return output.WriteReport(cmd.OutOrStdout(), entries, format)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Report file (default: aggregation.output)")
	cmd.Flags().StringVar(&filter, "filter", "", "Fuzzy filter on test names")
	cmd.Flags().IntVarP(&limit, "limit", "l", 25, "Number of tests to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Browse the report in a terminal UI")
	return cmd
}
