// Package compare contrasts job timings between two workflow runs.
package compare

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kyleking/gh-runwarden/internal/github"
)

// Source fetches a run and its jobs.
type Source interface {
	GetWorkflowRun(ctx context.Context, runID int64) (*github.WorkflowRun, error)
	GetWorkflowRunJobs(ctx context.Context, runID int64) ([]github.Job, error)
}

// Verdict tells which run a job was faster in.
type Verdict string

// Verdicts.
const (
	FasterInRun1  Verdict = "run1"
	FasterInRun2  Verdict = "run2"
	Same          Verdict = "same"
	MissingInRun1 Verdict = "missing_in_run1"
	MissingInRun2 Verdict = "missing_in_run2"
)

// RunSummary describes one side of the comparison.
type RunSummary struct {
	RunID      int64
	Name       string
	Branch     string
	Commit     string
	Status     github.RunStatus
	Conclusion github.Conclusion
	URL        string
	// Total sums the durations of successful jobs only.
	Total time.Duration
}

// JobComparison pairs one job name across both runs.
type JobComparison struct {
	Job  string
	Run1 time.Duration
	Run2 time.Duration
	// Diff is the absolute difference.
	Diff time.Duration
	// Percent is the change relative to run 1, nil without a baseline.
	Percent  *float64
	FasterIn Verdict
}

// Comparison is the full result.
type Comparison struct {
	Run1         RunSummary
	Run2         RunSummary
	Jobs         []JobComparison
	TotalDiff    time.Duration
	TotalPercent float64
}

// Runs fetches both runs and their jobs concurrently and compares them.
func Runs(ctx context.Context, src Source, runID1, runID2 int64) (*Comparison, error) {
	var (
		run1, run2   *github.WorkflowRun
		jobs1, jobs2 []github.Job
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		run1, err = src.GetWorkflowRun(ctx, runID1)
		return wrap(runID1, err)
	})
	g.Go(func() (err error) {
		run2, err = src.GetWorkflowRun(ctx, runID2)
		return wrap(runID2, err)
	})
	g.Go(func() (err error) {
		jobs1, err = src.GetWorkflowRunJobs(ctx, runID1)
		return wrap(runID1, err)
	})
	g.Go(func() (err error) {
		jobs2, err = src.GetWorkflowRunJobs(ctx, runID2)
		return wrap(runID2, err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Build(*run1, jobs1, *run2, jobs2), nil
}

func wrap(runID int64, err error) error {
	if err != nil {
		return fmt.Errorf("run %d: %w", runID, err)
	}
	return nil
}

// Build compares already fetched runs. Jobs are paired by name and sorted by
// absolute difference, largest first.
func Build(run1 github.WorkflowRun, jobs1 []github.Job, run2 github.WorkflowRun, jobs2 []github.Job) *Comparison {
	c := &Comparison{
		Run1: summarize(run1, jobs1),
		Run2: summarize(run2, jobs2),
	}

	byName1 := durations(jobs1)
	byName2 := durations(jobs2)

	for name, d1 := range byName1 {
		d2, ok := byName2[name]
		if !ok {
			c.Jobs = append(c.Jobs, JobComparison{
				Job:      name,
				Run1:     d1,
				Diff:     d1,
				Percent:  ptr(-100.0),
				FasterIn: MissingInRun2,
			})
			continue
		}
		c.Jobs = append(c.Jobs, pair(name, d1, d2))
	}
	for name, d2 := range byName2 {
		if _, ok := byName1[name]; ok {
			continue
		}
		c.Jobs = append(c.Jobs, JobComparison{
			Job:      name,
			Run2:     d2,
			Diff:     d2,
			FasterIn: MissingInRun1,
		})
	}

	slices.SortFunc(c.Jobs, func(a, b JobComparison) int {
		if n := cmp.Compare(b.Diff, a.Diff); n != 0 {
			return n
		}
		return cmp.Compare(a.Job, b.Job)
	})

	c.TotalDiff = absDuration(c.Run2.Total - c.Run1.Total)
	if c.Run1.Total > 0 {
		c.TotalPercent = percent(c.Run1.Total, c.Run2.Total)
	}
	return c
}

func pair(name string, d1, d2 time.Duration) JobComparison {
	jc := JobComparison{Job: name, Run1: d1, Run2: d2, Diff: absDuration(d2 - d1)}
	switch {
	case d2 > d1:
		jc.FasterIn = FasterInRun1
	case d2 < d1:
		jc.FasterIn = FasterInRun2
	default:
		jc.FasterIn = Same
	}
	if d1 > 0 {
		jc.Percent = ptr(percent(d1, d2))
	}
	return jc
}

func summarize(run github.WorkflowRun, jobs []github.Job) RunSummary {
	s := RunSummary{
		RunID:      run.ID,
		Name:       run.Name,
		Branch:     run.HeadBranch,
		Commit:     run.HeadSHA,
		Status:     run.Status,
		Conclusion: run.Conclusion,
		URL:        run.HTMLURL,
	}
	if len(s.Commit) > 7 {
		s.Commit = s.Commit[:7]
	}
	for _, j := range jobs {
		if j.Conclusion == github.ConclusionSuccess {
			s.Total += j.Duration()
		}
	}
	return s
}

// durations maps job names to durations. A re-run job name keeps its last
// attempt.
func durations(jobs []github.Job) map[string]time.Duration {
	out := make(map[string]time.Duration, len(jobs))
	for _, j := range jobs {
		out[j.Name] = j.Duration()
	}
	return out
}

// percent rounds the relative change from base to two decimals.
func percent(base, next time.Duration) float64 {
	p := float64(next-base) / float64(base) * 100
	return math.Round(p*100) / 100
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func ptr[T any](v T) *T { return &v }

// FormatDuration renders d as "1h 2m 3s", "2m 3s" or "3s".
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	h, m, s := secs/3600, secs%3600/60, secs%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
