// Package paginate walks bounded pages of workflow runs.
package paginate

import (
	"context"
	"iter"

	"github.com/kyleking/gh-runwarden/internal/github"
)

// RunLister fetches one page of workflow runs.
type RunLister interface {
	ListWorkflowRuns(ctx context.Context, opts github.ListRunsOptions) (*github.RunsResponse, error)
}

// Options bounds a pagination walk.
type Options struct {
	Workflow string
	Status   github.RunStatus
	PerPage  int
	MaxPages int
}

// Page is one non-empty page of runs. Index is the zero-based cursor the
// page was fetched at.
type Page struct {
	Index int
	Runs  []github.WorkflowRun
}

// Paginator produces pages of runs for a single status filter.
type Paginator struct {
	lister RunLister
	opts   Options
}

// New creates a paginator.
func New(lister RunLister, opts Options) *Paginator {
	return &Paginator{lister: lister, opts: opts}
}

// Pages returns a lazy sequence of pages. The walk stops when a page comes
// back empty (that page is not yielded), when MaxPages requests have been
// issued, when the consumer stops ranging, or after yielding a request error.
// Requests are issued only as the consumer asks for the next page, and each
// call to Pages starts a new walk from the first page.
func (p *Paginator) Pages(ctx context.Context) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		for cursor := 0; cursor < p.opts.MaxPages; cursor++ {
			if err := ctx.Err(); err != nil {
				yield(Page{Index: cursor}, err)
				return
			}

			resp, err := p.lister.ListWorkflowRuns(ctx, github.ListRunsOptions{
				Workflow: p.opts.Workflow,
				Status:   p.opts.Status,
				Page:     cursor + 1,
				PerPage:  p.opts.PerPage,
			})
			if err != nil {
				yield(Page{Index: cursor}, err)
				return
			}
			if len(resp.WorkflowRuns) == 0 {
				return
			}
			if !yield(Page{Index: cursor, Runs: resp.WorkflowRuns}, nil) {
				return
			}
		}
	}
}
