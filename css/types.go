package css

import (
	"io"
	"strings"

	"scopecss/utils/debug"
)

// Statement is a single parsed unit of stylesheet text: a selector (or an
// at-rule prelude) followed by its body.
type Statement struct {
	Selector string // Trimmed selector or at-rule prelude (e.g. "@media screen")
	Block    string // Trimmed raw body including braces, exactly as scanned

	// Statements holds nested rules of an at-rule body. It is nil for plain
	// rules and for at-rules whose body has no nested rules (e.g. @font-face).
	Statements []Statement
}

// IsContainer returns true if the statement carries nested statements.
// Containers are serialized from their children, not from Block.
func (s Statement) IsContainer() bool {
	return s.Statements != nil
}

// IsAtRule returns true if the statement selector is an at-rule prelude.
func (s Statement) IsAtRule() bool {
	return strings.HasPrefix(s.Selector, "@")
}

// IsBlockless returns true for at-rules terminated by ";" instead of a body
// (@import, @charset, @namespace).
func (s Statement) IsBlockless() bool {
	return !s.IsContainer() && s.Block == ";"
}

// AtKeyword returns lowercased at-rule name without "@" (e.g. "media"), or
// empty string for regular rules.
func (s Statement) AtKeyword() string {
	if !s.IsAtRule() {
		return ""
	}
	name := s.Selector[1:]
	if i := strings.IndexAny(name, " \t\r\n\f({;"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// Stylesheet is the result of parsing stylesheet text.
type Stylesheet struct {
	Statements []Statement // Top-level statements in source order
	Warnings   []string    // Lenient parsing notes (unterminated input and such)
}

// Leaves returns the number of non-container statements at any depth.
func (s *Stylesheet) Leaves() int {
	return countLeaves(s.Statements)
}

func countLeaves(stmts []Statement) int {
	n := 0
	for _, st := range stmts {
		if st.IsContainer() {
			n += countLeaves(st.Statements)
			continue
		}
		n++
	}
	return n
}

// Serialize flattens statements back into stylesheet text. Leaves replay
// their raw block, containers rebuild braces around serialized children.
// Block-less at-rules keep ";" right after the prelude, @charset is only
// recognized in exactly that form. Statements are separated by a newline.
func Serialize(stmts []Statement) string {
	var sb strings.Builder
	writeStatements(&sb, stmts)
	return sb.String()
}

func writeStatements(sb *strings.Builder, stmts []Statement) {
	for i, st := range stmts {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(st.Selector)
		if st.IsBlockless() {
			sb.WriteByte(';')
			continue
		}
		sb.WriteByte(' ')
		if st.IsContainer() {
			sb.WriteByte('{')
			writeStatements(sb, st.Statements)
			sb.WriteByte('}')
			continue
		}
		sb.WriteString(st.Block)
	}
}

// WriteTo writes serialized stylesheet to w, implementing io.WriterTo.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, Serialize(s.Statements))
	return int64(n), err
}

// String returns the CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	return Serialize(s.Statements)
}

// Dump returns human readable statement tree, used in debug reports.
func (s *Stylesheet) Dump() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "Stylesheet: %d statements, %d leaves", len(s.Statements), s.Leaves())
	dumpStatements(tw, 1, s.Statements)
	for _, w := range s.Warnings {
		tw.TextBlock(1, "warning", w)
	}
	return tw.String()
}

func dumpStatements(tw *debug.TreeWriter, depth int, stmts []Statement) {
	for i, st := range stmts {
		if st.IsContainer() {
			tw.Line(depth, "[%d] container (%d children)", i, len(st.Statements))
			tw.TextBlock(depth+1, "selector", st.Selector)
			dumpStatements(tw, depth+1, st.Statements)
			continue
		}
		tw.Line(depth, "[%d] rule", i)
		tw.TextBlock(depth+1, "selector", st.Selector)
		tw.TextBlock(depth+1, "block", st.Block)
	}
}
