// Package governance runs one policy pass over the repository's active runs.
package governance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kyleking/gh-runwarden/internal/dispatch"
	"github.com/kyleking/gh-runwarden/internal/github"
	"github.com/kyleking/gh-runwarden/internal/paginate"
	"github.com/kyleking/gh-runwarden/internal/policy"
)

// Options bounds a governance pass.
type Options struct {
	Statuses []github.RunStatus
	PerPage  int
	MaxPages int
}

// DefaultOptions polls queued and in-progress runs, five pages of 100 each.
func DefaultOptions() Options {
	return Options{
		Statuses: []github.RunStatus{github.StatusQueued, github.StatusInProgress},
		PerPage:  100,
		MaxPages: 5,
	}
}

// PassReport summarizes one governance pass.
type PassReport struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Pages     map[github.RunStatus]int
	RunsSeen  int
	Matched   int
	Dispatch  dispatch.Report
	Err       error
}

// Governor matches runs against the policy and dispatches actions.
type Governor struct {
	lister     paginate.RunLister
	matcher    *policy.Matcher
	dispatcher *dispatch.Dispatcher
	opts       Options
	logger     *slog.Logger
}

// New creates a governor.
func New(lister paginate.RunLister, matcher *policy.Matcher, dispatcher *dispatch.Dispatcher, opts Options, logger *slog.Logger) *Governor {
	if len(opts.Statuses) == 0 {
		opts.Statuses = DefaultOptions().Statuses
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Governor{
		lister:     lister,
		matcher:    matcher,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger,
	}
}

// walk is the per-status state of a pass.
type walk struct {
	status  github.RunStatus
	pages   int
	seen    int
	matched int
	err     error
}

// RunPass walks every configured status concurrently, dispatches an action
// for each matching run, and waits for all actions to settle. A pagination
// failure ends only its own status walk; the joined failures are returned
// alongside the report.
func (g *Governor) RunPass(ctx context.Context) (*PassReport, error) {
	report := &PassReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Pages:     make(map[github.RunStatus]int, len(g.opts.Statuses)),
	}
	logger := g.logger.With("pass_id", report.ID)

	var (
		mu      sync.Mutex
		claimed = make(map[int64]struct{})
	)
	claim := func(id int64) bool {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := claimed[id]; ok {
			return false
		}
		claimed[id] = struct{}{}
		return true
	}

	walks := make([]*walk, len(g.opts.Statuses))
	var eg errgroup.Group
	for i, status := range g.opts.Statuses {
		w := &walk{status: status}
		walks[i] = w
		eg.Go(func() error {
			g.walk(ctx, logger, w, claim)
			return nil
		})
	}
	_ = eg.Wait()

	report.Dispatch = g.dispatcher.Drain()

	var errs []error
	for _, w := range walks {
		report.Pages[w.status] += w.pages
		report.RunsSeen += w.seen
		report.Matched += w.matched
		if w.err != nil {
			errs = append(errs, w.err)
		}
	}
	report.Err = errors.Join(errs...)
	report.Duration = time.Since(report.StartedAt)

	logger.Info("governance pass finished",
		"runs", report.RunsSeen,
		"matched", report.Matched,
		"dispatched", report.Dispatch.Dispatched,
		"succeeded", report.Dispatch.Succeeded,
		"failed", report.Dispatch.Failed,
		"errors", len(errs),
		"duration", report.Duration,
	)
	return report, report.Err
}

func (g *Governor) walk(ctx context.Context, logger *slog.Logger, w *walk, claim func(int64) bool) {
	pages := paginate.New(g.lister, paginate.Options{
		Status:   w.status,
		PerPage:  g.opts.PerPage,
		MaxPages: g.opts.MaxPages,
	})

	for page, err := range pages.Pages(ctx) {
		if err != nil {
			w.err = fmt.Errorf("%s page %d: %w", w.status, page.Index+1, err)
			logger.Error("failed to list runs", "status", w.status, "page", page.Index+1, "error", err)
			return
		}
		w.pages++
		w.seen += len(page.Runs)

		for _, run := range page.Runs {
			rule, ok := g.matcher.Match(run, w.status)
			if !ok {
				continue
			}
			w.matched++
			if !claim(run.ID) {
				logger.Debug("run already targeted this pass", "run_id", run.ID)
				continue
			}
			logger.Debug("run matched",
				"run_id", run.ID,
				"status", run.Status,
				"rule", rule.String(),
			)
			g.dispatcher.Dispatch(ctx, run, rule)
		}
	}
}
