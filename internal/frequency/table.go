// Package frequency counts failing-test annotations by title.
package frequency

import (
	"maps"
	"sync"
)

// Table holds occurrence counts keyed by annotation title. It is safe for
// concurrent use; counts only grow for the lifetime of a table.
type Table struct {
	mu     sync.Mutex
	counts map[string]int
}

// Entry is one ranked row of the persisted report.
type Entry struct {
	Test  string `json:"test"`
	Count int    `json:"count"`
}

// New creates an empty Table.
func New() *Table {
	return &Table{
		counts: make(map[string]int),
	}
}

// Add increments the count for title.
func (t *Table) Add(title string) {
	t.mu.Lock()
	t.counts[title]++
	t.mu.Unlock()
}

// Count returns the current count for title.
func (t *Table) Count(title string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[title]
}

// Len returns the number of distinct titles.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.counts)
}

// Snapshot returns a copy of the counts.
func (t *Table) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.counts)
}

// Ranked returns the current counts as report entries.
func (t *Table) Ranked() []Entry {
	return Rank(t.Snapshot())
}
