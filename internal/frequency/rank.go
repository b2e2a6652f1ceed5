package frequency

import (
	"sort"

	"github.com/sahilm/fuzzy"
)

// Rank converts counts into report entries. Zero counts are dropped; entries
// are ordered by count descending, then by title ascending.
func Rank(counts map[string]int) []Entry {
	entries := make([]Entry, 0, len(counts))
	for title, count := range counts {
		if count > 0 {
			entries = append(entries, Entry{Test: title, Count: count})
		}
	}
	SortByCount(entries)
	return entries
}

// SortByCount sorts entries by count descending, then title ascending.
func SortByCount(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Test < entries[j].Test
	})
}

// Total returns the sum of all counts.
func Total(entries []Entry) int {
	total := 0
	for _, e := range entries {
		total += e.Count
	}
	return total
}

// entrySource adapts entries to fuzzy.Source.
type entrySource []Entry

func (s entrySource) String(i int) string { return s[i].Test }
func (s entrySource) Len() int            { return len(s) }

// Filter returns the entries whose title fuzzy-matches query, keeping their
// rank order. An empty query returns entries unchanged.
func Filter(entries []Entry, query string) []Entry {
	if query == "" {
		return entries
	}
	matches := fuzzy.FindFrom(query, entrySource(entries))
	indexes := make([]int, 0, len(matches))
	for _, m := range matches {
		indexes = append(indexes, m.Index)
	}
	sort.Ints(indexes)

	filtered := make([]Entry, 0, len(indexes))
	for _, i := range indexes {
		filtered = append(filtered, entries[i])
	}
	return filtered
}
