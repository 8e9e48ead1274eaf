// Package ui renders styled command output.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Color palette
var (
	Accent  = lipgloss.Color("#3B82F6")
	DimGray = lipgloss.Color("#6B7280")
	Green   = lipgloss.Color("#10B981")
	Red     = lipgloss.Color("#EF4444")
	Yellow  = lipgloss.Color("#F59E0B")
	White   = lipgloss.Color("#F9FAFB")
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	AccentStyle = lipgloss.NewStyle().
			Foreground(Accent)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green)

	WarnStyle = lipgloss.NewStyle().
			Foreground(Yellow)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Init disables color when stdout is not a terminal or NO_COLOR is set.
func Init() {
	if !IsTerminal(os.Stdout) || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// RenderTitle renders a section heading.
func RenderTitle(s string) string {
	return TitleStyle.Render(s)
}

// RenderAccent renders s in the accent color.
func RenderAccent(s string) string {
	return AccentStyle.Render(s)
}

// RenderPass renders s as a success marker.
func RenderPass(s string) string {
	return SuccessStyle.Render(s)
}

// RenderWarn renders s as a warning marker.
func RenderWarn(s string) string {
	return WarnStyle.Render(s)
}

// RenderFail renders s as an error marker.
func RenderFail(s string) string {
	return ErrorStyle.Render(s)
}

// KeyValue writes aligned "label  value" pairs, one per line. pairs
// alternates labels and values.
func KeyValue(w io.Writer, pairs ...string) {
	width := 0
	for i := 0; i < len(pairs); i += 2 {
		width = max(width, len(pairs[i]))
	}

	for i := 0; i+1 < len(pairs); i += 2 {
		label := pairs[i] + ":" + strings.Repeat(" ", width-len(pairs[i]))
		fmt.Fprintf(w, "  %s  %s\n", LabelStyle.Render(label), pairs[i+1])
	}
}

// Row renders one list row as a right-aligned index and its login.
func Row(index int32, login string, indexWidth int) string {
	idx := fmt.Sprintf("%*d", indexWidth, index)
	return LabelStyle.Render(idx) + "  " + login
}
