package css

import (
	"fmt"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/multierr"
)

// Issue describes a single problem found by Lint.
type Issue struct {
	Line int
	Col  int
	Msg  string
}

func (i *Issue) Error() string {
	return fmt.Sprintf("%d:%d: %s", i.Line, i.Col, i.Msg)
}

func issueAt(text string, offset int, msg string) *Issue {
	line, col, _ := parse.Position(strings.NewReader(text), offset)
	return &Issue{Line: line, Col: col, Msg: msg}
}

// Lint checks stylesheet text for the kind of damage the statement parser
// silently tolerates: unterminated strings, malformed url() tokens and
// unbalanced braces. It returns nil or all issues combined with multierr.
func Lint(text string) error {
	var (
		err    error
		opened []int // offsets of unclosed '{'
		offset int
	)

	lexer := css.NewLexer(parse.NewInputString(text))
	for {
		tt, data := lexer.Next()

		switch tt {
		case css.ErrorToken:
			if lerr := lexer.Err(); lerr != nil && lerr != io.EOF {
				err = multierr.Append(err, issueAt(text, offset, lerr.Error()))
			}
			for _, o := range opened {
				err = multierr.Append(err, issueAt(text, o, "unclosed '{'"))
			}
			return err

		case css.BadStringToken:
			err = multierr.Append(err, issueAt(text, offset, "newline in string"))

		case css.StringToken:
			if !terminated(data) {
				err = multierr.Append(err, issueAt(text, offset, "unterminated string"))
			}

		case css.BadURLToken:
			err = multierr.Append(err, issueAt(text, offset, "malformed url()"))

		case css.LeftBraceToken:
			opened = append(opened, offset)

		case css.RightBraceToken:
			if len(opened) == 0 {
				err = multierr.Append(err, issueAt(text, offset, "unexpected '}'"))
			} else {
				opened = opened[:len(opened)-1]
			}
		}
		offset += len(data)
	}
}

// terminated checks that string token ends with unescaped opening quote.
func terminated(data []byte) bool {
	if len(data) < 2 || data[len(data)-1] != data[0] {
		return false
	}
	slashes := 0
	for i := len(data) - 2; i > 0 && data[i] == '\\'; i-- {
		slashes++
	}
	return slashes%2 == 0
}
