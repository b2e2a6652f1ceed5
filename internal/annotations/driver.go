package annotations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kyleking/gh-runwarden/internal/frequency"
	"github.com/kyleking/gh-runwarden/internal/github"
	"github.com/kyleking/gh-runwarden/internal/paginate"
)

// Options bounds one aggregation pass.
type Options struct {
	Workflow    string           // Workflow file to scan, empty for all workflows
	Status      github.RunStatus // Run filter (default: failure)
	PerPage     int              // Runs per page (default: 15)
	MaxPages    int              // Page cap (default: 100)
	PageDelay   time.Duration    // Pause between pages (default: 2s)
	Concurrency int              // In-flight request cap (default: 8)
}

// DefaultOptions returns the default aggregation bounds.
func DefaultOptions() Options {
	return Options{
		Status:      github.StatusFailure,
		PerPage:     15,
		MaxPages:    100,
		PageDelay:   2 * time.Second,
		Concurrency: DefaultConcurrency,
	}
}

// Checkpointer persists the table's current state.
type Checkpointer interface {
	Persist(table *frequency.Table) error
}

// Result summarizes an aggregation pass.
type Result struct {
	Entries     []frequency.Entry
	Pages       int
	Runs        int
	FailedRuns  int
	Annotations int64
	Duration    time.Duration
}

// Driver runs a single aggregation pass over failed runs.
type Driver struct {
	lister  paginate.RunLister
	fetcher Fetcher
	writer  Checkpointer
	opts    Options
	logger  *slog.Logger

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDriver creates a driver.
func NewDriver(lister paginate.RunLister, fetcher Fetcher, writer Checkpointer, opts Options, logger *slog.Logger) *Driver {
	if opts.Status == "" {
		opts.Status = github.StatusFailure
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		lister:  lister,
		fetcher: fetcher,
		writer:  writer,
		opts:    opts,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Run starts from an empty table, aggregates page after page, and checkpoints
// the cumulative counts after every page and once more at the end, including
// when the pass stops on an error.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	table := frequency.New()
	agg := NewAggregator(d.fetcher, table, d.opts.Concurrency, d.logger)
	result := &Result{}

	pages := paginate.New(d.lister, paginate.Options{
		Workflow: d.opts.Workflow,
		Status:   d.opts.Status,
		PerPage:  d.opts.PerPage,
		MaxPages: d.opts.MaxPages,
	})

	d.logger.Info("aggregation started",
		"workflow", d.opts.Workflow,
		"status", d.opts.Status,
		"max_pages", d.opts.MaxPages,
	)

	var passErr error
	for page, err := range pages.Pages(ctx) {
		if err != nil {
			passErr = fmt.Errorf("page %d: %w", page.Index+1, err)
			break
		}

		stats := agg.AddPage(ctx, page.Runs)
		result.Pages++
		result.Runs += stats.Runs
		result.FailedRuns += stats.FailedRuns
		result.Annotations += stats.Annotations

		if err := d.writer.Persist(table); err != nil {
			d.logger.Error("checkpoint failed", "page", page.Index+1, "error", err)
		}
		d.logger.Info("aggregated page",
			"page", page.Index+1,
			"runs", stats.Runs,
			"failed_runs", stats.FailedRuns,
			"annotations", stats.Annotations,
			"untitled", stats.Skipped,
			"titles", table.Len(),
		)

		if page.Index+1 >= d.opts.MaxPages {
			break
		}
		if err := d.sleep(ctx, d.opts.PageDelay); err != nil {
			passErr = err
			break
		}
	}

	if err := d.writer.Persist(table); err != nil {
		passErr = errors.Join(passErr, fmt.Errorf("final checkpoint: %w", err))
	}

	result.Entries = table.Ranked()
	result.Duration = time.Since(start)

	if passErr != nil {
		d.logger.Error("aggregation ended early", "pages", result.Pages, "error", passErr)
		return result, passErr
	}
	d.logger.Info("aggregation finished",
		"pages", result.Pages,
		"runs", result.Runs,
		"titles", len(result.Entries),
		"duration", result.Duration,
	)
	return result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
