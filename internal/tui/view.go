package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mschirtzinger/userlist/internal/ui"
)

// Styles
var (
	accentStyle = lipgloss.NewStyle().Foreground(ui.Accent)

	headerStyle = lipgloss.NewStyle().
			Foreground(ui.White).
			Bold(true)

	indexStyle = lipgloss.NewStyle().
			Foreground(ui.DimGray)

	selectedStyle = lipgloss.NewStyle().
			Foreground(ui.White).
			Background(ui.Accent)

	errorStyle = lipgloss.NewStyle().
			Foreground(ui.Red)

	dimStyle = lipgloss.NewStyle().
			Foreground(ui.DimGray)
)

// View renders the header, the visible window of rows and the footer
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderRows())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m Model) renderHeader() string {
	s := m.list
	title := headerStyle.Render("GitHub users")

	var info string
	switch {
	case s.syncing:
		info = m.spinner.View() + " syncing"
	case s.snapshot == nil:
		info = dimStyle.Render("no data yet")
	default:
		info = dimStyle.Render(fmt.Sprintf("%d rows · synced %s", s.total, s.lastSync.Format("15:04:05")))
	}
	return title + "  " + info
}

func (m Model) renderRows() string {
	s := m.list
	visible := int32(m.visibleRows())

	if s.snapshot == nil || s.total == 0 {
		return dimStyle.Render("(empty)") + strings.Repeat("\n", int(visible))
	}

	width := len(fmt.Sprint(s.total))
	lines := make([]string, 0, visible)
	for i := s.offset; i < s.offset+visible; i++ {
		row, ok, err := s.snapshot.Get(i)
		if err != nil {
			lines = append(lines, errorStyle.Render(fmt.Sprintf("failed to read row %d: %v", i, err)))
			break
		}
		if !ok {
			break
		}

		idx := fmt.Sprintf("%*d", width, row.Index)
		if i == s.cursor {
			lines = append(lines, selectedStyle.Render(idx+"  "+row.Value))
			continue
		}
		lines = append(lines, indexStyle.Render(idx)+"  "+row.Value)
	}

	// Pad so the footer stays at the bottom
	for len(lines) < int(visible) {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	s := m.list

	var status string
	switch {
	case s.err != nil:
		status = errorStyle.Render("sync failed: " + s.err.Error())
	case s.status != "":
		status = dimStyle.Render(s.status)
	}

	return status + "\n" + m.help.ShortHelpView(m.keys.ShortHelp())
}
