// Package annotations builds the failing-test frequency report from the
// annotations of failed workflow runs.
package annotations

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/kyleking/gh-runwarden/internal/frequency"
	"github.com/kyleking/gh-runwarden/internal/github"
)

// DefaultConcurrency caps in-flight provider requests during aggregation.
const DefaultConcurrency = 8

// Fetcher lists check runs and their annotations.
type Fetcher interface {
	ListCheckRuns(ctx context.Context, checkSuiteURL string) ([]github.CheckRun, error)
	ListAnnotations(ctx context.Context, annotationsURL string) ([]github.Annotation, error)
}

// Aggregator counts annotation titles into a frequency table.
type Aggregator struct {
	fetcher Fetcher
	table   *frequency.Table
	sem     *semaphore.Weighted
	logger  *slog.Logger
}

// PageStats summarizes one processed page.
type PageStats struct {
	Runs        int
	FailedRuns  int
	Annotations int64
	Skipped     int64 // annotations without a title
}

// NewAggregator creates an aggregator writing into table. concurrency bounds
// the number of provider requests in flight at once.
func NewAggregator(fetcher Fetcher, table *frequency.Table, concurrency int, logger *slog.Logger) *Aggregator {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Aggregator{
		fetcher: fetcher,
		table:   table,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		logger:  logger,
	}
}

// AddPage aggregates every run of a page concurrently and returns once all of
// them have settled. A failing run is logged and does not affect the others.
func (a *Aggregator) AddPage(ctx context.Context, runs []github.WorkflowRun) PageStats {
	stats := PageStats{Runs: len(runs)}
	var counted, skipped atomic.Int64
	var failed atomic.Int32

	var g errgroup.Group
	for _, run := range runs {
		g.Go(func() error {
			c, s, err := a.addRun(ctx, run)
			counted.Add(c)
			skipped.Add(s)
			if err != nil {
				failed.Add(1)
				a.logger.Error("failed to aggregate run",
					"run_id", run.ID,
					"url", run.HTMLURL,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.FailedRuns = int(failed.Load())
	stats.Annotations = counted.Load()
	stats.Skipped = skipped.Load()
	return stats
}

// AddRun aggregates the annotations of a single failed run.
func (a *Aggregator) AddRun(ctx context.Context, run github.WorkflowRun) error {
	_, _, err := a.addRun(ctx, run)
	return err
}

// addRun lists the run's check runs, then fetches the annotations of every
// check run that reports some, all concurrently. Only a failure to list the
// check runs fails the run; annotation fetch failures are logged and skipped.
func (a *Aggregator) addRun(ctx context.Context, run github.WorkflowRun) (int64, int64, error) {
	var checkRuns []github.CheckRun
	err := a.limited(ctx, func() error {
		var err error
		checkRuns, err = a.fetcher.ListCheckRuns(ctx, run.CheckSuiteURL)
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("run %d: %w", run.ID, err)
	}

	var counted, skipped atomic.Int64
	var g errgroup.Group
	for _, cr := range checkRuns {
		if !cr.HasAnnotations() {
			continue
		}
		g.Go(func() error {
			var annotations []github.Annotation
			err := a.limited(ctx, func() error {
				var err error
				annotations, err = a.fetcher.ListAnnotations(ctx, cr.Output.AnnotationsURL)
				return err
			})
			if err != nil {
				a.logger.Warn("failed to fetch annotations",
					"run_id", run.ID,
					"check_run_id", cr.ID,
					"error", err,
				)
				return nil
			}
			for _, ann := range annotations {
				if ann.Title == "" {
					skipped.Add(1)
					continue
				}
				a.table.Add(ann.Title)
				counted.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return counted.Load(), skipped.Load(), nil
}

// limited runs fn while holding one request slot. Slots are held only for
// the request itself, never while waiting on other requests.
func (a *Aggregator) limited(ctx context.Context, fn func() error) error {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer a.sem.Release(1)
	return fn()
}
