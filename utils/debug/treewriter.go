// Package debug has helpers producing human readable dumps for debug reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultTextLimit is the number of bytes TextBlock shows before truncating.
const DefaultTextLimit = 120

// TreeWriter accumulates indented tree lines.
type TreeWriter struct {
	w     *strings.Builder
	limit int
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w:     &strings.Builder{},
		limit: DefaultTextLimit,
	}
}

// WithTextLimit changes TextBlock truncation limit, 0 disables truncation.
func (tw *TreeWriter) WithTextLimit(limit int) *TreeWriter {
	tw.limit = limit
	return tw
}

func (tw *TreeWriter) String() string {
	return tw.w.String()
}

func (tw *TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// TextBlock writes quoted value under label, long values are cut.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(tw.encodeText(value))
	tw.w.WriteByte('\n')
}

func (tw *TreeWriter) encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	if tw.limit > 0 && len(raw) > tw.limit {
		// never cut a multi-byte character
		cut := tw.limit
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		return strconv.Quote(raw[:cut]) + fmt.Sprintf("... (%d bytes)", len(raw))
	}
	return strconv.Quote(raw)
}
