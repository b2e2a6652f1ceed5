// Package app is the interactive browser for the failing-test report.
package app

import (
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kyleking/gh-runwarden/internal/frequency"
	"github.com/kyleking/gh-runwarden/internal/ui"
	"github.com/kyleking/gh-runwarden/internal/ui/panes"
)

// Model is the root bubbletea model for the report browser.
type Model struct {
	entries   []frequency.Entry
	source    string
	updatedAt time.Time

	report    panes.ReportModel
	search    textinput.Model
	searching bool
	status    string

	// copyToClipboard is swapped in tests.
	copyToClipboard func(string) error

	width  int
	height int
	keys   KeyMap
}

// New creates a browser over entries loaded from source, last written at
// updatedAt (zero when unknown).
func New(entries []frequency.Entry, source string, updatedAt time.Time) Model {
	search := textinput.New()
	search.Placeholder = "filter tests"
	search.Prompt = "/ "

	m := Model{
		entries:         entries,
		source:          source,
		updatedAt:       updatedAt,
		report:          panes.NewReportModel(),
		search:          search,
		copyToClipboard: clipboard.WriteAll,
		keys:            DefaultKeyMap(),
	}
	m.report.SetFocused(true)
	m.report.SetEntries(entries, "")
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

type copiedMsg struct {
	test string
	err  error
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.report.SetSize(msg.Width, msg.Height-2)
		m.search.Width = msg.Width - 4
		return m, nil

	case panes.TestSelectedMsg:
		return m, m.copyTest(msg.Entry.Test)

	case copiedMsg:
		if msg.err != nil {
			m.status = ui.ErrorStyle.Render("copy failed: " + msg.err.Error())
		} else {
			m.status = "copied " + msg.test
		}
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.report.MoveUp()
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.report.MoveDown()
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.status = ""
		cmd := m.search.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Clear):
		m.search.SetValue("")
		m.applyFilter()
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		return m, m.report.HandleSelect()
	}

	return m, nil
}

// updateSearch routes keys to the search input. Enter keeps the filter,
// esc drops it.
func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.applyFilter()
		return m, nil
	case tea.KeyUp:
		m.report.MoveUp()
		return m, nil
	case tea.KeyDown:
		m.report.MoveDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *Model) applyFilter() {
	query := m.search.Value()
	m.report.SetEntries(frequency.Filter(m.entries, query), query)
}

func (m Model) copyTest(test string) tea.Cmd {
	write := m.copyToClipboard
	return func() tea.Msg {
		return copiedMsg{test: test, err: write(test)}
	}
}

// Selected returns the highlighted entry.
func (m Model) Selected() *frequency.Entry {
	return m.report.SelectedEntry()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := ui.SubtitleStyle.Render(m.summary())
	body := m.report.View()

	footer := ui.HelpStyle.Render("[↑/↓] move  [/] search  [y] copy  [esc] clear  [q] quit")
	switch {
	case m.searching:
		footer = m.search.View()
	case m.status != "":
		footer = m.status
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) summary() string {
	s := fmt.Sprintf("%s: %d tests, %d failures", m.source, len(m.entries), frequency.Total(m.entries))
	if !m.updatedAt.IsZero() {
		s += ", updated " + panes.FormatTimeAgo(m.updatedAt)
	}
	return s
}
