package panes

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kyleking/gh-runwarden/internal/frequency"
	"github.com/kyleking/gh-runwarden/internal/ui"
)

// FormatTimeAgo renders t relative to now.
func FormatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// chrome is the border, title and header lines around the rows.
const chrome = 4

// ReportModel manages the ranked failure list pane.
type ReportModel struct {
	entries       []frequency.Entry
	selectedIndex int
	offset        int
	focused       bool
	width         int
	height        int
	query         string
}

// NewReportModel creates a new report pane model.
func NewReportModel() ReportModel {
	return ReportModel{selectedIndex: 0}
}

// SetEntries replaces the visible entries. query is shown in the title.
func (m *ReportModel) SetEntries(entries []frequency.Entry, query string) {
	m.entries = entries
	m.query = query
	if m.selectedIndex >= len(entries) {
		m.selectedIndex = max(len(entries)-1, 0)
	}
	m.clampOffset()
}

// SetSize updates the pane dimensions.
func (m *ReportModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.clampOffset()
}

// SetFocused updates the focus state.
func (m *ReportModel) SetFocused(focused bool) {
	m.focused = focused
}

// MoveUp moves selection up.
func (m *ReportModel) MoveUp() {
	if m.selectedIndex > 0 {
		m.selectedIndex--
	}
	m.clampOffset()
}

// MoveDown moves selection down.
func (m *ReportModel) MoveDown() {
	if m.selectedIndex < len(m.entries)-1 {
		m.selectedIndex++
	}
	m.clampOffset()
}

// visibleRows is how many rows fit; zero height means unbounded.
func (m ReportModel) visibleRows() int {
	if m.height == 0 {
		return len(m.entries)
	}
	return max(m.height-chrome, 1)
}

func (m *ReportModel) clampOffset() {
	rows := m.visibleRows()
	if m.selectedIndex < m.offset {
		m.offset = m.selectedIndex
	}
	if m.selectedIndex >= m.offset+rows {
		m.offset = m.selectedIndex - rows + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// Update handles messages for the report pane.
func (m ReportModel) Update(msg tea.Msg) (ReportModel, tea.Cmd) {
	return m, nil
}

// View renders the report pane.
func (m ReportModel) View() string {
	style := ui.PaneStyle(m.width, m.height, m.focused)
	title := "Failing Tests"
	if m.query != "" {
		title = "Failing Tests (" + m.query + ")"
	}
	return style.Render(ui.TitleStyle.Render(title) + "\n" + m.ViewContent())
}

// ViewContent renders just the list content without the pane border.
func (m ReportModel) ViewContent() string {
	if len(m.entries) == 0 {
		if m.query != "" {
			return ui.SubtitleStyle.Render("No tests match " + strconv.Quote(m.query))
		}
		var content strings.Builder
		content.WriteString(ui.SubtitleStyle.Render("No failures recorded"))
		content.WriteString("\n\n")
		content.WriteString(ui.NormalStyle.Render("Run 'gh runwarden aggregate'"))
		content.WriteString("\n")
		content.WriteString(ui.NormalStyle.Render("to build the report."))
		return content.String()
	}

	countWidth := max(len(strconv.Itoa(m.entries[0].Count)), len("Count"))
	titleWidth := max(m.width-countWidth-10, 10)

	var content strings.Builder
	content.WriteString(ui.TableHeaderStyle.Render(
		"  " + ui.PadRight("Count", countWidth) + "  Test"))
	content.WriteString("\n")

	end := min(m.offset+m.visibleRows(), len(m.entries))
	for i := m.offset; i < end; i++ {
		entry := m.entries[i]

		count := fmt.Sprintf("%*d", countWidth, entry.Count)
		title := "  " + ui.TruncateWithEllipsis(entry.Test, titleWidth)

		if i == m.selectedIndex {
			content.WriteString(ui.SelectedStyle.Render("> ") + ui.TableSelectedStyle.Render(count+title))
		} else {
			content.WriteString("  " + ui.CountStyle.Render(count) + ui.TableRowStyle.Render(title))
		}
		if i < end-1 {
			content.WriteString("\n")
		}
	}
	return content.String()
}

// SelectedEntry returns the currently selected entry.
func (m ReportModel) SelectedEntry() *frequency.Entry {
	if len(m.entries) == 0 || m.selectedIndex >= len(m.entries) {
		return nil
	}
	return &m.entries[m.selectedIndex]
}

// TestSelectedMsg is sent when an entry is selected.
type TestSelectedMsg struct {
	Entry frequency.Entry
}

// HandleSelect processes a selection and returns a message.
func (m ReportModel) HandleSelect() tea.Cmd {
	entry := m.SelectedEntry()
	if entry == nil {
		return nil
	}
	return func() tea.Msg {
		return TestSelectedMsg{Entry: *entry}
	}
}
