// Package pprint formats CLI output: status lines, key/value pairs and tables.
package pprint

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPrimary = lipgloss.Color("#7B8CDE")
	ColorAccent  = lipgloss.Color("#56E0C8")
	ColorSuccess = lipgloss.Color("#48BB78")
	ColorWarning = lipgloss.Color("#F6AD55")
	ColorError   = lipgloss.Color("#FC8181")
	ColorMuted   = lipgloss.Color("#4A5568")
	ColorText    = lipgloss.Color("#E2E8F0")
)

var (
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	StyleMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleAccent  = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	StylePrimary = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	StyleText    = lipgloss.NewStyle().Foreground(ColorText)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Width(16)
)

// Output is where everything but Error writes. Tests swap it.
var Output io.Writer = os.Stdout

func Success(format string, args ...any) {
	fmt.Fprintln(Output, StyleSuccess.Render("✓ ")+StyleText.Render(fmt.Sprintf(format, args...)))
}

func Warn(format string, args ...any) {
	fmt.Fprintln(Output, StyleWarning.Render("⚠ ")+StyleText.Render(fmt.Sprintf(format, args...)))
}

// Error prints to stderr.
func Error(format string, args ...any) {
	fmt.Fprintln(os.Stderr, StyleError.Render("✗ ")+StyleText.Render(fmt.Sprintf(format, args...)))
}

func Info(format string, args ...any) {
	fmt.Fprintln(Output, StyleMuted.Render("  "+fmt.Sprintf(format, args...)))
}

// Header prints a section header.
func Header(title string) {
	bar := strings.Repeat("─", 60)
	fmt.Fprintln(Output)
	fmt.Fprintln(Output, StylePrimary.Render(bar))
	fmt.Fprintln(Output, StylePrimary.Render(" ◉ "+title))
	fmt.Fprintln(Output, StylePrimary.Render(bar))
}

func KV(key, value string) {
	fmt.Fprintln(Output, StyleLabel.Render(key)+StyleText.Render(value))
}

// Table renders rows under coloured headers with padded columns.
type Table struct {
	headers []string
	rows    [][]string
}

func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Render() {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	fmt.Fprintln(Output)
	header := ""
	for i, h := range t.headers {
		header += fmt.Sprintf("%-*s", widths[i]+2, h)
	}
	fmt.Fprintln(Output, StylePrimary.Render(header))

	sep := ""
	for _, w := range widths {
		sep += strings.Repeat("─", w+2)
	}
	fmt.Fprintln(Output, StyleMuted.Render(sep))

	for _, row := range t.rows {
		line := ""
		for i, cell := range row {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			line += fmt.Sprintf("%-*s", w+2, cell)
		}
		fmt.Fprintln(Output, StyleText.Render(line))
	}
	fmt.Fprintln(Output)
}
