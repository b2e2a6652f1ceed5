// Package output renders reports and comparisons as tables or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/kyleking/gh-runwarden/internal/compare"
	"github.com/kyleking/gh-runwarden/internal/frequency"
)

// Format selects the rendering.
type Format string

// Formats.
const (
	TextOut Format = "text"
	JSONOut Format = "json"
)

// writeJSON is a generic JSON encoder that handles indentation consistently.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// WriteReport prints ranked failure titles.
func WriteReport(w io.Writer, entries []frequency.Entry, format Format) error {
	if format == JSONOut {
		if entries == nil {
			entries = []frequency.Entry{}
		}
		return writeJSON(w, entries)
	}

	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"Rank", "Test", "Failures"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	data := make([][]string, 0, len(entries))
	for i, e := range entries {
		data = append(data, []string{strconv.Itoa(i + 1), e.Test, strconv.Itoa(e.Count)})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%d tests, %d failures\n", len(entries), frequency.Total(entries))
	return err
}

// comparisonJSON is the stable JSON shape of a comparison; durations are
// whole seconds.
type comparisonJSON struct {
	Run1         runJSON   `json:"run1"`
	Run2         runJSON   `json:"run2"`
	Jobs         []jobJSON `json:"jobs"`
	TotalDiff    float64   `json:"total_difference_seconds"`
	TotalPercent float64   `json:"total_percent_change"`
}

type runJSON struct {
	RunID      int64   `json:"run_id"`
	Name       string  `json:"name"`
	Branch     string  `json:"branch"`
	Commit     string  `json:"commit"`
	Status     string  `json:"status"`
	Conclusion string  `json:"conclusion"`
	URL        string  `json:"url"`
	Total      float64 `json:"total_duration_seconds"`
}

type jobJSON struct {
	Job      string   `json:"job_name"`
	Run1     float64  `json:"run1_duration_seconds"`
	Run2     float64  `json:"run2_duration_seconds"`
	Diff     float64  `json:"difference_seconds"`
	Percent  *float64 `json:"percent_change"`
	FasterIn string   `json:"faster_in"`
}

func toRunJSON(s compare.RunSummary) runJSON {
	return runJSON{
		RunID:      s.RunID,
		Name:       s.Name,
		Branch:     s.Branch,
		Commit:     s.Commit,
		Status:     string(s.Status),
		Conclusion: string(s.Conclusion),
		URL:        s.URL,
		Total:      s.Total.Seconds(),
	}
}

// WriteComparison prints a run comparison. Colors mark jobs that got slower
// (red) or faster (green) in the second run.
func WriteComparison(w io.Writer, c *compare.Comparison, format Format, useColors bool) error {
	if format == JSONOut {
		out := comparisonJSON{
			Run1:         toRunJSON(c.Run1),
			Run2:         toRunJSON(c.Run2),
			Jobs:         make([]jobJSON, 0, len(c.Jobs)),
			TotalDiff:    c.TotalDiff.Seconds(),
			TotalPercent: c.TotalPercent,
		}
		for _, j := range c.Jobs {
			out.Jobs = append(out.Jobs, jobJSON{
				Job:      j.Job,
				Run1:     j.Run1.Seconds(),
				Run2:     j.Run2.Seconds(),
				Diff:     j.Diff.Seconds(),
				Percent:  j.Percent,
				FasterIn: string(j.FasterIn),
			})
		}
		return writeJSON(w, out)
	}

	var red, green, yellow func(...any) string
	if useColors {
		red = color.New(color.FgRed).SprintFunc()
		green = color.New(color.FgGreen).SprintFunc()
		yellow = color.New(color.FgYellow).SprintFunc()
	} else {
		red = fmt.Sprint
		green = fmt.Sprint
		yellow = fmt.Sprint
	}

	if _, err := fmt.Fprintf(w, "Run 1: #%d %s (%s@%s) %s\nRun 2: #%d %s (%s@%s) %s\n\n",
		c.Run1.RunID, c.Run1.Name, c.Run1.Branch, c.Run1.Commit, c.Run1.URL,
		c.Run2.RunID, c.Run2.Name, c.Run2.Branch, c.Run2.Commit, c.Run2.URL,
	); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"Job", "Run 1", "Run 2", "Delta", "Change", "Faster In"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(c.Jobs))
	for _, j := range c.Jobs {
		run1, run2 := compare.FormatDuration(j.Run1), compare.FormatDuration(j.Run2)
		var delta string
		switch j.FasterIn {
		case compare.FasterInRun1:
			delta = red("+" + compare.FormatDuration(j.Diff) + " ▲")
		case compare.FasterInRun2:
			delta = green("-" + compare.FormatDuration(j.Diff) + " ▼")
		case compare.MissingInRun1:
			run1 = "N/A"
			delta = yellow(compare.FormatDuration(j.Diff))
		case compare.MissingInRun2:
			run2 = "N/A"
			delta = yellow(compare.FormatDuration(j.Diff))
		default:
			delta = compare.FormatDuration(0)
		}
		change := "N/A"
		if j.Percent != nil {
			change = fmt.Sprintf("%+.2f%%", *j.Percent)
		}
		data = append(data, []string{j.Job, run1, run2, delta, change, string(j.FasterIn)})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Total (successful jobs): %s vs %s, difference %s (%+.2f%%)\n",
		compare.FormatDuration(c.Run1.Total),
		compare.FormatDuration(c.Run2.Total),
		compare.FormatDuration(c.TotalDiff),
		c.TotalPercent,
	)
	return err
}
