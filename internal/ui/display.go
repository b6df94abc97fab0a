// Package ui renders the capture pipeline's terminal output.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// ANSI codes
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiCyan   = "\033[36m"
	ansiYellow = "\033[33m"
	ansiGreen  = "\033[32m"
	ansiRed    = "\033[31m"
)

// Display writes formatted pipeline output to a single writer.
type Display struct {
	out io.Writer
}

// New creates a Display writing to out.
func New(out io.Writer) *Display {
	return &Display{out: out}
}

// Step prints a dim progress line for one pipeline stage.
func (d *Display) Step(label string) {
	fmt.Fprintf(d.out, "%s· %s%s\n", ansiDim, label, ansiReset)
}

// Filed prints the success summary for a created task.
func (d *Display) Filed(title, destination, taskID string, labels []string) {
	fmt.Fprintf(d.out, "\n%s✔ filed%s %s%s%s\n", ansiGreen, ansiReset, ansiBold, Clip(title, 60), ansiReset)
	fmt.Fprintf(d.out, "  %s→ %s%s\n", ansiCyan, destination, ansiReset)
	if len(labels) > 0 {
		fmt.Fprintf(d.out, "  %s@ %s%s\n", ansiYellow, strings.Join(labels, ", "), ansiReset)
	}
	fmt.Fprintf(d.out, "  %sid %s%s\n", ansiDim, taskID, ansiReset)
}

// Error prints a failure line.
func (d *Display) Error(err error) {
	fmt.Fprintf(d.out, "%s✘ %v%s\n", ansiRed, err, ansiReset)
}

// Clip truncates s to at most width terminal columns, appending "…" if
// trimmed. Width-aware so CJK transcripts clip cleanly.
func Clip(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
