package annotations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/gh-runwarden/internal/frequency"
	"github.com/kyleking/gh-runwarden/internal/github"
)

// mockFetcher serves check runs per suite URL and annotations per URL.
type mockFetcher struct {
	mu          sync.Mutex
	checkRuns   map[string][]github.CheckRun
	annotations map[string][]github.Annotation
	failing     map[string]bool
	calls       []string
	delay       time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		checkRuns:   make(map[string][]github.CheckRun),
		annotations: make(map[string][]github.Annotation),
		failing:     make(map[string]bool),
	}
}

func (m *mockFetcher) enter(url string) error {
	n := m.inFlight.Add(1)
	for {
		peak := m.maxInFlight.Load()
		if n <= peak || m.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	m.mu.Lock()
	m.calls = append(m.calls, url)
	fail := m.failing[url]
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if fail {
		return errors.New("502 bad gateway")
	}
	return nil
}

func (m *mockFetcher) ListCheckRuns(_ context.Context, suiteURL string) ([]github.CheckRun, error) {
	defer m.inFlight.Add(-1)
	if err := m.enter(suiteURL); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkRuns[suiteURL], nil
}

func (m *mockFetcher) ListAnnotations(_ context.Context, url string) ([]github.Annotation, error) {
	defer m.inFlight.Add(-1)
	if err := m.enter(url); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.annotations[url], nil
}

// addFailedRun registers a run whose single check run carries titles.
func (m *mockFetcher) addFailedRun(id int64, titles ...string) github.WorkflowRun {
	suite := fmt.Sprintf("https://api.github.com/repos/o/r/check-suites/%d", id)
	annURL := fmt.Sprintf("https://api.github.com/repos/o/r/check-runs/%d/annotations", id)
	anns := make([]github.Annotation, 0, len(titles))
	for _, title := range titles {
		anns = append(anns, github.Annotation{Title: title})
	}
	m.checkRuns[suite] = []github.CheckRun{
		{ID: id, Output: github.CheckRunOutput{AnnotationsCount: len(anns), AnnotationsURL: annURL}},
	}
	m.annotations[annURL] = anns
	return github.WorkflowRun{
		ID:            id,
		Status:        github.StatusCompleted,
		Conclusion:    github.ConclusionFailure,
		CheckSuiteURL: suite,
	}
}

func TestAddRun_CountsTitles(t *testing.T) {
	fetcher := newMockFetcher()
	suite := "https://api.github.com/repos/o/r/check-suites/1"
	fetcher.checkRuns[suite] = []github.CheckRun{
		{ID: 1, Output: github.CheckRunOutput{AnnotationsCount: 3, AnnotationsURL: "ann/1"}},
		{ID: 2, Output: github.CheckRunOutput{AnnotationsCount: 0, AnnotationsURL: "ann/2"}},
		{ID: 3, Output: github.CheckRunOutput{AnnotationsCount: 1, AnnotationsURL: "ann/3"}},
	}
	fetcher.annotations["ann/1"] = []github.Annotation{{Title: "testFoo"}, {Title: ""}, {Title: "testBar"}}
	fetcher.annotations["ann/2"] = []github.Annotation{{Title: "never fetched"}}
	fetcher.annotations["ann/3"] = []github.Annotation{{Title: "testFoo"}}

	table := frequency.New()
	agg := NewAggregator(fetcher, table, 4, nil)

	require.NoError(t, agg.AddRun(context.Background(), github.WorkflowRun{ID: 1, CheckSuiteURL: suite}))

	assert.Equal(t, 2, table.Count("testFoo"))
	assert.Equal(t, 1, table.Count("testBar"))
	assert.Equal(t, 0, table.Count("never fetched"))
	assert.Equal(t, 2, table.Len())
	assert.NotContains(t, fetcher.calls, "ann/2")
}

func TestAddRun_AnnotationFailureSkipped(t *testing.T) {
	fetcher := newMockFetcher()
	suite := "suite/1"
	fetcher.checkRuns[suite] = []github.CheckRun{
		{ID: 1, Output: github.CheckRunOutput{AnnotationsCount: 1, AnnotationsURL: "ann/bad"}},
		{ID: 2, Output: github.CheckRunOutput{AnnotationsCount: 1, AnnotationsURL: "ann/good"}},
	}
	fetcher.annotations["ann/good"] = []github.Annotation{{Title: "testFoo"}}
	fetcher.failing["ann/bad"] = true

	table := frequency.New()
	agg := NewAggregator(fetcher, table, 4, nil)

	require.NoError(t, agg.AddRun(context.Background(), github.WorkflowRun{ID: 1, CheckSuiteURL: suite}))
	assert.Equal(t, 1, table.Count("testFoo"))
}

func TestAddPage_IsolatesRunFailures(t *testing.T) {
	fetcher := newMockFetcher()
	good := fetcher.addFailedRun(1, "testFoo")
	bad := fetcher.addFailedRun(2, "testBar")
	fetcher.failing[bad.CheckSuiteURL] = true

	table := frequency.New()
	agg := NewAggregator(fetcher, table, 4, nil)

	stats := agg.AddPage(context.Background(), []github.WorkflowRun{good, bad})
	assert.Equal(t, 2, stats.Runs)
	assert.Equal(t, 1, stats.FailedRuns)
	assert.Equal(t, int64(1), stats.Annotations)
	assert.Equal(t, 1, table.Count("testFoo"))
	assert.Equal(t, 0, table.Count("testBar"))
}

func TestAddPage_ConcurrencyCeiling(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.delay = 5 * time.Millisecond

	var runs []github.WorkflowRun
	for i := int64(1); i <= 20; i++ {
		runs = append(runs, fetcher.addFailedRun(i, "testFoo"))
	}

	table := frequency.New()
	agg := NewAggregator(fetcher, table, 3, nil)
	agg.AddPage(context.Background(), runs)

	assert.Equal(t, 20, table.Count("testFoo"))
	assert.LessOrEqual(t, fetcher.maxInFlight.Load(), int32(3))
	assert.Equal(t, 40, len(fetcher.calls))
}

// pageLister serves fixed pages of runs, then empty pages.
type pageLister struct {
	mu     sync.Mutex
	pages  [][]github.WorkflowRun
	failAt int
	calls  int
}

func (l *pageLister) ListWorkflowRuns(_ context.Context, opts github.ListRunsOptions) (*github.RunsResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.failAt != 0 && opts.Page == l.failAt {
		return nil, errors.New("secondary rate limit")
	}
	if opts.Page-1 >= len(l.pages) {
		return &github.RunsResponse{}, nil
	}
	return &github.RunsResponse{WorkflowRuns: l.pages[opts.Page-1]}, nil
}

// recordingWriter keeps a snapshot per Persist call.
type recordingWriter struct {
	snapshots []map[string]int
	err       error
}

func (w *recordingWriter) Persist(table *frequency.Table) error {
	w.snapshots = append(w.snapshots, table.Snapshot())
	return w.err
}

func newTestDriver(lister *pageLister, fetcher *mockFetcher, writer *recordingWriter, opts Options) (*Driver, *[]time.Duration) {
	d := NewDriver(lister, fetcher, writer, opts, nil)
	var delays []time.Duration
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		delays = append(delays, dur)
		return ctx.Err()
	}
	return d, &delays
}

func TestDriver_TwoFailedRunsSameTitle(t *testing.T) {
	fetcher := newMockFetcher()
	lister := &pageLister{pages: [][]github.WorkflowRun{{
		fetcher.addFailedRun(1, "testFoo"),
		fetcher.addFailedRun(2, "testFoo"),
	}}}
	writer := &recordingWriter{}

	d, _ := newTestDriver(lister, fetcher, writer, DefaultOptions())
	result, err := d.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, result.Entries)
	assert.Equal(t, frequency.Entry{Test: "testFoo", Count: 2}, result.Entries[0])
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, 2, result.Runs)
}

func TestDriver_CheckpointsEveryPageAndAtEnd(t *testing.T) {
	fetcher := newMockFetcher()
	lister := &pageLister{pages: [][]github.WorkflowRun{
		{fetcher.addFailedRun(1, "testFoo", "testBar")},
		{fetcher.addFailedRun(2, "testFoo")},
		{fetcher.addFailedRun(3, "testBaz", "testFoo")},
	}}
	writer := &recordingWriter{}

	opts := DefaultOptions()
	d, delays := newTestDriver(lister, fetcher, writer, opts)
	_, err := d.Run(context.Background())
	require.NoError(t, err)

	// One per page plus the final flush.
	require.Len(t, writer.snapshots, 4)
	assert.Equal(t, map[string]int{"testFoo": 1, "testBar": 1}, writer.snapshots[0])
	assert.Equal(t, map[string]int{"testFoo": 3, "testBar": 1, "testBaz": 1}, writer.snapshots[3])

	// Counts never decrease from one checkpoint to the next.
	for i := 1; i < len(writer.snapshots); i++ {
		for title, prev := range writer.snapshots[i-1] {
			assert.GreaterOrEqual(t, writer.snapshots[i][title], prev, "title %s at checkpoint %d", title, i)
		}
	}

	// Four list requests: three pages and the empty one that ends the walk.
	assert.Equal(t, 4, lister.calls)
	assert.Equal(t, []time.Duration{opts.PageDelay, opts.PageDelay, opts.PageDelay}, *delays)
}

func TestDriver_StopsAtPageCap(t *testing.T) {
	fetcher := newMockFetcher()
	var pages [][]github.WorkflowRun
	for i := int64(1); i <= 10; i++ {
		pages = append(pages, []github.WorkflowRun{fetcher.addFailedRun(i, "testFoo")})
	}
	lister := &pageLister{pages: pages}
	writer := &recordingWriter{}

	opts := DefaultOptions()
	opts.MaxPages = 4
	d, delays := newTestDriver(lister, fetcher, writer, opts)
	result, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, lister.calls)
	assert.Equal(t, 4, result.Pages)
	assert.Len(t, *delays, 3)
	assert.Equal(t, []frequency.Entry{{Test: "testFoo", Count: 4}}, result.Entries)
}

func TestDriver_ListErrorStillCheckpoints(t *testing.T) {
	fetcher := newMockFetcher()
	lister := &pageLister{
		pages: [][]github.WorkflowRun{
			{fetcher.addFailedRun(1, "testFoo")},
			{fetcher.addFailedRun(2, "testFoo")},
		},
		failAt: 2,
	}
	writer := &recordingWriter{}

	d, _ := newTestDriver(lister, fetcher, writer, DefaultOptions())
	result, err := d.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, result.Pages)
	require.Len(t, writer.snapshots, 2)
	assert.Equal(t, map[string]int{"testFoo": 1}, writer.snapshots[1])
}

func TestDriver_CancelledDuringDelay(t *testing.T) {
	fetcher := newMockFetcher()
	lister := &pageLister{pages: [][]github.WorkflowRun{
		{fetcher.addFailedRun(1, "testFoo")},
		{fetcher.addFailedRun(2, "testFoo")},
	}}
	writer := &recordingWriter{}

	d := NewDriver(lister, fetcher, writer, DefaultOptions(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	d.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	result, err := d.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, 1, lister.calls)
	assert.Len(t, writer.snapshots, 2)
}

func TestDriver_FinalCheckpointError(t *testing.T) {
	fetcher := newMockFetcher()
	lister := &pageLister{}
	writer := &recordingWriter{err: errors.New("disk full")}

	d, _ := newTestDriver(lister, fetcher, writer, DefaultOptions())
	_, err := d.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "final checkpoint")
}
