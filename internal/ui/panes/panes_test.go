package panes

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/gh-runwarden/internal/frequency"
)

func testEntries(n int) []frequency.Entry {
	entries := make([]frequency.Entry, n)
	for i := range entries {
		entries[i] = frequency.Entry{Test: fmt.Sprintf("org.apache.pulsar.Test%02d", i), Count: n - i}
	}
	return entries
}

func TestReportModel_SetEntries(t *testing.T) {
	m := NewReportModel()
	m.SetSize(60, 20)
	m.SetEntries(testEntries(3), "")

	entry := m.SelectedEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "org.apache.pulsar.Test00", entry.Test)
}

func TestReportModel_SetEntries_Empty(t *testing.T) {
	m := NewReportModel()
	m.SetEntries(nil, "")

	assert.Nil(t, m.SelectedEntry())
	assert.Contains(t, m.ViewContent(), "No failures recorded")

	m.SetEntries(nil, "zzz")
	assert.Contains(t, m.ViewContent(), `No tests match "zzz"`)
}

func TestReportModel_SetEntries_ClampsSelection(t *testing.T) {
	m := NewReportModel()
	m.SetEntries(testEntries(5), "")
	for range 4 {
		m.MoveDown()
	}

	m.SetEntries(testEntries(2), "Test")

	entry := m.SelectedEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "org.apache.pulsar.Test01", entry.Test)
}

func TestReportModel_MoveUpDown_Boundaries(t *testing.T) {
	m := NewReportModel()
	m.SetEntries(testEntries(2), "")

	m.MoveUp()
	assert.Equal(t, "org.apache.pulsar.Test00", m.SelectedEntry().Test)

	m.MoveDown()
	m.MoveDown()
	assert.Equal(t, "org.apache.pulsar.Test01", m.SelectedEntry().Test)
}

func TestReportModel_ScrollsToSelection(t *testing.T) {
	m := NewReportModel()
	m.SetSize(60, 8) // four visible rows
	m.SetEntries(testEntries(10), "")

	for range 6 {
		m.MoveDown()
	}

	content := m.ViewContent()
	assert.Contains(t, content, "> ")
	assert.Contains(t, content, "Test06")
	assert.NotContains(t, content, "Test00")
}

func TestReportModel_ViewContent(t *testing.T) {
	m := NewReportModel()
	m.SetSize(80, 20)
	m.SetEntries([]frequency.Entry{{Test: "testFoo", Count: 12}, {Test: "testBar", Count: 3}}, "")

	content := m.ViewContent()
	assert.Contains(t, content, "Count")
	assert.Contains(t, content, "> ")
	assert.Contains(t, content, "12  testFoo")
	assert.Contains(t, content, "\n      3  testBar")
	assert.Less(t, strings.Index(content, "testFoo"), strings.Index(content, "testBar"))
}

func TestReportModel_HandleSelect(t *testing.T) {
	m := NewReportModel()
	assert.Nil(t, m.HandleSelect())

	m.SetEntries(testEntries(1), "")
	msg := m.HandleSelect()()
	selected, ok := msg.(TestSelectedMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, 1, selected.Entry.Count)
}

func TestFormatTimeAgo(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		timeAgo  time.Duration
		expected string
	}{
		{"just now", 30 * time.Second, "just now"},
		{"5 minutes ago", 5 * time.Minute, "5m ago"},
		{"3 hours ago", 3 * time.Hour, "3h ago"},
		{"2 days ago", 48 * time.Hour, "2d ago"},
		{"6 days", 6 * 24 * time.Hour, "6d ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatTimeAgo(now.Add(-tt.timeAgo)))
		})
	}
}
