// Package output formats human-readable CLI output. Write errors are
// ignored; the console is best effort.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Writer renders CLI messages to a single destination.
type Writer struct {
	out io.Writer
}

// New creates a Writer over out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Line prints a plain line.
func (w *Writer) Line(msg string) {
	_, _ = fmt.Fprintln(w.out, msg)
}

// Linef prints a formatted line.
func (w *Writer) Linef(format string, args ...any) {
	w.Line(fmt.Sprintf(format, args...))
}

// Indent prints an indented detail line.
func (w *Writer) Indent(msg string) {
	_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
}

// Indentf prints a formatted indented detail line.
func (w *Writer) Indentf(format string, args ...any) {
	w.Indent(fmt.Sprintf(format, args...))
}

// Successf prints a formatted success line.
func (w *Writer) Successf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Warningf prints a formatted warning line.
func (w *Writer) Warningf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "! %s\n", fmt.Sprintf(format, args...))
}

// Errorf prints a formatted error line.
func (w *Writer) Errorf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "✗ %s\n", fmt.Sprintf(format, args...))
}

// KV prints an aligned label/value pair for status-style listings.
func (w *Writer) KV(label string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %-16s %v\n", label+":", value)
}

// Newline prints a blank line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Snippet prints up to n leading lines of text, indented, with trailing
// blank lines trimmed.
func (w *Writer) Snippet(text string, n int) {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	for _, line := range lines {
		w.Indent(line)
	}
}
