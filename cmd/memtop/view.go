package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joshuapare/memtrack/track"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	totalsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	pausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("208"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
)

func (m Model) View() string {
	var b strings.Builder

	title := fmt.Sprintf("memtop — native memory (%s)", m.tracker.Level())
	b.WriteString(titleStyle.Render(title))
	if m.load.Paused() {
		b.WriteString(" " + pausedStyle.Render("[paused]"))
	}
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("report error: %v", m.err)))
		b.WriteString("\n")
	case m.latest != nil:
		totals := fmt.Sprintf("Total %s in %d blocks    arenas %s    headers %s",
			formatBytes(m.latest.TotalBytes),
			m.latest.TotalBlocks,
			formatBytes(m.latest.ArenaBytes),
			formatBytes(m.latest.HeaderBytes),
		)
		b.WriteString(totalsStyle.Render(totals))
		b.WriteString("\n")
	default:
		b.WriteString(totalsStyle.Render("collecting..."))
		b.WriteString("\n")
	}

	b.WriteString(baseStyle.Render(m.table.View()))
	b.WriteString("\n")

	help := "q quit · space pause"
	if m.tracker.Level() == track.LevelDetail {
		if m.mode == siteView {
			help += " · s categories"
		} else {
			help += " · s call sites"
		}
	}
	b.WriteString(helpStyle.Render(help))
	b.WriteString("\n")

	return b.String()
}
