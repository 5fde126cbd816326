// Package ui renders keg's human-facing output: status lines and the caveat
// box shown after an install. Output is styled only on a color-capable
// terminal; pipes, redirects and NO_COLOR get plain text.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorAccent  = lipgloss.AdaptiveColor{Light: "#005FAF", Dark: "#5FAFFF"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#87D787"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#AF5F00", Dark: "#FFAF5F"}
	colorError   = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#8A8A8A"}
)

// Printer writes formatted output to a single writer.
type Printer struct {
	out    io.Writer
	styled bool

	header  lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	errorS  lipgloss.Style
	muted   lipgloss.Style
	box     lipgloss.Style
}

// New creates a printer for out, styling only when out is a terminal.
func New(out io.Writer) *Printer {
	return NewWithStyle(out, IsTerminal(out))
}

// NewWithStyle creates a printer with styling forced on or off.
func NewWithStyle(out io.Writer, styled bool) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out:     out,
		styled:  styled,
		header:  r.NewStyle().Bold(true).Foreground(colorAccent),
		success: r.NewStyle().Bold(true).Foreground(colorSuccess),
		warning: r.NewStyle().Bold(true).Foreground(colorWarning),
		errorS:  r.NewStyle().Bold(true).Foreground(colorError),
		muted:   r.NewStyle().Foreground(colorMuted),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorWarning).
			Padding(0, 1),
	}
}

// IsTerminal reports whether w is a terminal that should get styled output.
func IsTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Styled reports whether the printer emits styled output.
func (p *Printer) Styled() bool {
	return p.styled
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

// Header prints a "==> title" section header.
func (p *Printer) Header(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.render(p.header, "==> "+fmt.Sprintf(format, args...)))
}

// Success prints a completion line.
func (p *Printer) Success(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.render(p.success, "✓")+" "+fmt.Sprintf(format, args...))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.render(p.warning, "Warning:")+" "+fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (p *Printer) Error(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.render(p.errorS, "Error:")+" "+fmt.Sprintf(format, args...))
}

// Detail prints an indented, de-emphasized line.
func (p *Printer) Detail(format string, args ...interface{}) {
	fmt.Fprintln(p.out, "  "+p.render(p.muted, fmt.Sprintf(format, args...)))
}

// Field prints an aligned "label: value" line.
func (p *Printer) Field(label, value string) {
	fmt.Fprintf(p.out, "%-10s %s\n", label+":", value)
}

// Caveat prints the caveat attached to an install. Empty caveats print
// nothing.
func (p *Printer) Caveat(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	p.Header("Caveats")
	if !p.styled {
		fmt.Fprintln(p.out, text)
		return
	}
	fmt.Fprintln(p.out, p.box.Render(text))
}
