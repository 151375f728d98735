package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joshuapare/memtrack/alloc"
	"github.com/joshuapare/memtrack/cmd/memtop/logger"
	"github.com/joshuapare/memtrack/report"
	"github.com/joshuapare/memtrack/track"
)

// viewMode selects which table the main pane shows.
type viewMode int

const (
	categoryView viewMode = iota
	siteView
)

// topSites caps the call-site view.
const topSites = 30

// tickMsg drives the refresh loop.
type tickMsg time.Time

// Model is the main application model.
type Model struct {
	tracker   *track.Tracker
	allocator *alloc.Allocator
	load      *workload

	table    table.Model
	mode     viewMode
	interval time.Duration

	latest *report.Report
	err    error

	width  int
	height int
}

// NewModel builds the tracker, its allocator, the background workload and
// the table the display renders into.
func NewModel(level track.Level, interval time.Duration) Model {
	tracker := track.New(track.Config{Level: level})
	allocator := alloc.New(tracker, alloc.DefaultConfig)

	t := table.New(
		table.WithColumns(categoryColumns()),
		table.WithFocused(true),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return Model{
		tracker:   tracker,
		allocator: allocator,
		load:      startWorkload(allocator),
		table:     t,
		interval:  interval,
	}
}

// Close stops the workload and releases the allocator's mappings.
func (m Model) Close() error {
	m.load.Stop()
	return m.allocator.Close()
}

func (m Model) Init() tea.Cmd {
	return tick(m.interval)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.load.TogglePause()
			return m, nil
		case "s":
			if m.tracker.Level() == track.LevelDetail {
				m.toggleMode()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(m.tableHeight())
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick(m.interval)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) toggleMode() {
	if m.mode == categoryView {
		m.mode = siteView
		m.table.SetColumns(siteColumns())
	} else {
		m.mode = categoryView
		m.table.SetColumns(categoryColumns())
	}
	logger.Debug("view toggled", "sites", m.mode == siteView)
	m.table.SetRows(nil)
	m.refresh()
}

// refresh rebuilds the table rows from a fresh report.
func (m *Model) refresh() {
	r, err := report.Collect(m.tracker, topSites)
	if err != nil {
		logger.Error("report collection failed", "error", err)
		m.err = err
		return
	}
	m.err = nil
	m.latest = r

	if m.mode == siteView {
		m.table.SetRows(siteRows(r))
		return
	}
	m.table.SetRows(categoryRows(r))
}

func (m Model) tableHeight() int {
	// Header block and footer take a fixed number of lines.
	h := m.height - 8
	if h < 4 {
		h = 4
	}
	return h
}

func categoryColumns() []table.Column {
	return []table.Column{
		{Title: "Category", Width: 14},
		{Title: "Bytes", Width: 14},
		{Title: "Blocks", Width: 10},
		{Title: "Peak Bytes", Width: 14},
		{Title: "Arena Bytes", Width: 12},
		{Title: "Arenas", Width: 7},
	}
}

func categoryRows(r *report.Report) []table.Row {
	rows := make([]table.Row, 0, len(r.Categories))
	for _, c := range r.Categories {
		rows = append(rows, table.Row{
			c.Name,
			formatBytes(c.MallocBytes),
			fmt.Sprintf("%d", c.MallocCount),
			formatBytes(c.PeakBytes),
			formatBytes(c.ArenaBytes),
			fmt.Sprintf("%d", c.ArenaCount),
		})
	}
	return rows
}

func siteColumns() []table.Column {
	return []table.Column{
		{Title: "Bytes", Width: 12},
		{Title: "Blocks", Width: 8},
		{Title: "Category", Width: 12},
		{Title: "Call Site", Width: 60},
	}
}

func siteRows(r *report.Report) []table.Row {
	rows := make([]table.Row, 0, len(r.Sites))
	for _, s := range r.Sites {
		caller := "(unresolved)"
		if len(s.Frames) > 0 {
			caller = s.Frames[0]
		}
		rows = append(rows, table.Row{
			formatBytes(s.Bytes),
			fmt.Sprintf("%d", s.Blocks),
			s.Category,
			caller,
		})
	}
	return rows
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
