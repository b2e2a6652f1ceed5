package paginate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/gh-runwarden/internal/github"
	"github.com/kyleking/gh-runwarden/internal/paginate"
)

// mockLister serves a fixed number of non-empty pages, then empty pages.
type mockLister struct {
	fullPages int
	failAt    int // 1-based page number that errors, 0 for never
	calls     []github.ListRunsOptions
}

func (m *mockLister) ListWorkflowRuns(_ context.Context, opts github.ListRunsOptions) (*github.RunsResponse, error) {
	m.calls = append(m.calls, opts)
	if m.failAt != 0 && opts.Page == m.failAt {
		return nil, errors.New("connection refused")
	}
	if opts.Page > m.fullPages {
		return &github.RunsResponse{}, nil
	}
	return &github.RunsResponse{
		WorkflowRuns: []github.WorkflowRun{{ID: int64(opts.Page * 100)}, {ID: int64(opts.Page*100 + 1)}},
	}, nil
}

func collect(t *testing.T, p *paginate.Paginator) ([]paginate.Page, error) {
	t.Helper()
	var pages []paginate.Page
	for page, err := range p.Pages(context.Background()) {
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func TestPages_Bounds(t *testing.T) {
	tests := []struct {
		name      string
		fullPages int
		maxPages  int
		wantPages int
		wantCalls int
	}{
		{"stops at page cap", 10, 5, 5, 5},
		{"stops at empty page", 2, 5, 2, 3},
		{"empty first page", 0, 5, 0, 1},
		{"cap reached exactly when pages run out", 5, 5, 5, 5},
		{"zero cap issues no request", 3, 0, 0, 0},
		{"large cap", 3, 100, 3, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &mockLister{fullPages: tt.fullPages}
			p := paginate.New(lister, paginate.Options{
				Status:   github.StatusQueued,
				PerPage:  100,
				MaxPages: tt.maxPages,
			})

			pages, err := collect(t, p)
			require.NoError(t, err)
			assert.Len(t, pages, tt.wantPages)
			assert.Len(t, lister.calls, tt.wantCalls)
			assert.LessOrEqual(t, len(lister.calls), tt.maxPages)
		})
	}
}

func TestPages_CursorAndRequestShape(t *testing.T) {
	lister := &mockLister{fullPages: 3}
	p := paginate.New(lister, paginate.Options{
		Workflow: "pulsar-ci.yaml",
		Status:   github.StatusFailure,
		PerPage:  15,
		MaxPages: 100,
	})

	pages, err := collect(t, p)
	require.NoError(t, err)

	for i, page := range pages {
		assert.Equal(t, i, page.Index)
	}
	for i, call := range lister.calls {
		assert.Equal(t, i+1, call.Page)
		assert.Equal(t, 15, call.PerPage)
		assert.Equal(t, github.StatusFailure, call.Status)
		assert.Equal(t, "pulsar-ci.yaml", call.Workflow)
	}
}

// Five non-empty pages under a cap of five: a sixth request is never made.
func TestPages_SixthPageNeverRequested(t *testing.T) {
	lister := &mockLister{fullPages: 1000}
	p := paginate.New(lister, paginate.Options{Status: github.StatusInProgress, PerPage: 100, MaxPages: 5})

	pages, err := collect(t, p)
	require.NoError(t, err)
	assert.Len(t, pages, 5)
	require.Len(t, lister.calls, 5)
	assert.Equal(t, 5, lister.calls[4].Page)
}

func TestPages_ErrorEndsWalk(t *testing.T) {
	lister := &mockLister{fullPages: 10, failAt: 3}
	p := paginate.New(lister, paginate.Options{Status: github.StatusQueued, MaxPages: 5})

	pages, err := collect(t, p)
	require.Error(t, err)
	assert.Len(t, pages, 2)
	assert.Len(t, lister.calls, 3)
}

func TestPages_ConsumerStopsEarly(t *testing.T) {
	lister := &mockLister{fullPages: 10}
	p := paginate.New(lister, paginate.Options{Status: github.StatusQueued, MaxPages: 5})

	for page, err := range p.Pages(context.Background()) {
		require.NoError(t, err)
		if page.Index == 1 {
			break
		}
	}
	assert.Len(t, lister.calls, 2)
}

func TestPages_CancelledContext(t *testing.T) {
	lister := &mockLister{fullPages: 10}
	p := paginate.New(lister, paginate.Options{Status: github.StatusQueued, MaxPages: 5})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotErr error
	for _, err := range p.Pages(ctx) {
		gotErr = err
	}
	require.ErrorIs(t, gotErr, context.Canceled)
	assert.Empty(t, lister.calls)
}
