// Package dispatch issues cancel and re-run requests without blocking the
// caller on the provider's answer.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kyleking/gh-runwarden/internal/github"
	"github.com/kyleking/gh-runwarden/internal/policy"
)

// DefaultTimeout bounds a single action request.
const DefaultTimeout = 30 * time.Second

// Actions performs governance actions on the provider.
type Actions interface {
	CancelWorkflowRun(ctx context.Context, runID int64) error
	RerunFailedJobs(ctx context.Context, runID int64) error
}

// Outcome is the settled result of one dispatched action.
type Outcome struct {
	RunID   int64
	URL     string
	Action  policy.Action
	Rule    string
	Err     error
	Elapsed time.Duration
}

// OK reports whether the provider accepted the action.
func (o Outcome) OK() bool { return o.Err == nil }

// Task is a handle on an in-flight action.
type Task struct {
	done    chan struct{}
	outcome Outcome
}

// Done is closed once the action has settled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the action settles or ctx ends.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Report aggregates the outcomes collected by Drain.
type Report struct {
	Dispatched int
	Succeeded  int
	Failed     int
	Outcomes   []Outcome
}

// Dispatcher starts actions in the background and tracks them until drained.
type Dispatcher struct {
	actions Actions
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	tasks []*Task
}

// New creates a dispatcher. Each action gets its own timeout.
func New(actions Actions, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{actions: actions, timeout: timeout, logger: logger}
}

// Dispatch starts the rule's action against run and returns immediately.
// The request outlives cancellation of ctx; only the per-action timeout
// bounds it. Failures are logged and recorded, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, run github.WorkflowRun, rule policy.Rule) *Task {
	task := &Task{
		done: make(chan struct{}),
		outcome: Outcome{
			RunID:  run.ID,
			URL:    run.HTMLURL,
			Action: rule.EffectiveAction(),
			Rule:   rule.String(),
		},
	}

	d.mu.Lock()
	d.tasks = append(d.tasks, task)
	d.mu.Unlock()

	actionCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	go func() {
		defer close(task.done)
		defer cancel()

		start := time.Now()
		task.outcome.Err = d.perform(actionCtx, task.outcome.Action, run.ID)
		task.outcome.Elapsed = time.Since(start)
		d.log(task.outcome)
	}()

	return task
}

func (d *Dispatcher) perform(ctx context.Context, action policy.Action, runID int64) error {
	switch action {
	case policy.ActionCancel:
		return d.actions.CancelWorkflowRun(ctx, runID)
	case policy.ActionRerun:
		return d.actions.RerunFailedJobs(ctx, runID)
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}

func (d *Dispatcher) log(o Outcome) {
	attrs := []any{
		"run_id", o.RunID,
		"url", o.URL,
		"action", o.Action,
		"rule", o.Rule,
		"elapsed", o.Elapsed,
	}
	if o.Err != nil {
		d.logger.Error("action failed", append(attrs, "error", o.Err)...)
		return
	}
	switch o.Action {
	case policy.ActionCancel:
		d.logger.Info("cancelled run", attrs...)
	case policy.ActionRerun:
		d.logger.Info("requested rerun of failed jobs", attrs...)
	}
}

// Drain waits for every task dispatched since the previous Drain and
// returns their outcomes in dispatch order.
func (d *Dispatcher) Drain() Report {
	d.mu.Lock()
	tasks := d.tasks
	d.tasks = nil
	d.mu.Unlock()

	report := Report{Dispatched: len(tasks), Outcomes: make([]Outcome, 0, len(tasks))}
	for _, task := range tasks {
		<-task.done
		report.Outcomes = append(report.Outcomes, task.outcome)
		if task.outcome.OK() {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	return report
}
