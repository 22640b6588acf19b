package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// styles holds the text styles for human-readable output. Every style is
// a no-op unless the output is a terminal.
type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	muted lipgloss.Style
	warn  lipgloss.Style
}

func newStyles(w io.Writer) styles {
	plain := lipgloss.NewStyle()
	s := styles{title: plain, label: plain, value: plain, muted: plain, warn: plain}
	if !isTerminal(w) {
		return s
	}
	s.title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	s.label = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	s.value = lipgloss.NewStyle().Bold(true)
	s.muted = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	s.warn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	return s
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// field renders one "label  value" line with the label padded to width.
func (s styles) field(w io.Writer, width int, label, value string) {
	io.WriteString(w, "  "+s.label.Width(width).Render(label)+" "+value+"\n")
}
