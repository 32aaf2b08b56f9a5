package debug

import (
	"strings"
	"testing"
)

func TestTreeWriter_Line(t *testing.T) {
	tests := []struct {
		name   string
		depth  int
		format string
		args   []any
		want   string
	}{
		{"no depth", 0, "test", nil, "test\n"},
		{"depth 1", 1, "indented", nil, "  indented\n"},
		{"depth 2", 2, "double indent", nil, "    double indent\n"},
		{"with formatting", 1, "value: %d", []any{42}, "  value: 42\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.Line(tt.depth, tt.format, tt.args...)
			if got := tw.String(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_TextBlock(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		label string
		value string
		want  string
	}{
		{"empty value", 0, "selector", "", "selector: \n"},
		{"quoted", 1, "selector", `a[href="x"]`, "  selector: \"a[href=\\\"x\\\"]\"\n"},
		{"newlines escaped", 0, "block", "{\n}", "block: \"{\\n}\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.TextBlock(tt.depth, tt.label, tt.value)
			if got := tw.String(); got != tt.want {
				t.Errorf("TextBlock() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_TextLimit(t *testing.T) {
	long := strings.Repeat("x", 10)

	tw := NewTreeWriter().WithTextLimit(4)
	tw.TextBlock(0, "block", long)
	if got, want := tw.String(), "block: \"xxxx\"... (10 bytes)\n"; got != want {
		t.Errorf("TextBlock() = %q, want %q", got, want)
	}

	tw = NewTreeWriter().WithTextLimit(0)
	tw.TextBlock(0, "block", long)
	if got, want := tw.String(), "block: \""+long+"\"\n"; got != want {
		t.Errorf("TextBlock() = %q, want %q", got, want)
	}
}

func TestTreeWriter_TextLimitMultibyte(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		value string
		want  string
	}{
		{"cut inside character", 2, "aПривет", "block: \"a\"... (13 bytes)\n"},
		{"cut on boundary", 3, "aПривет", "block: \"aП\"... (13 bytes)\n"},
		{"four byte character", 3, "😀 x", "block: \"\"... (6 bytes)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter().WithTextLimit(tt.limit)
			tw.TextBlock(0, "block", tt.value)
			if got := tw.String(); got != tt.want {
				t.Errorf("TextBlock() = %q, want %q", got, tt.want)
			}
		})
	}
}
