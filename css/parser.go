package css

import (
	"strings"

	"go.uber.org/zap"
)

// Parser splits stylesheet text into a tree of statements. It does not
// validate CSS: anything it cannot make sense of is carried along as text.
// Parser keeps no state between calls and is safe for concurrent use.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new statement parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses stylesheet text into a Stylesheet.
// The optional source parameter identifies what's being parsed (for debug logging).
func (p *Parser) Parse(text string, source ...string) *Stylesheet {
	sheet := &Stylesheet{Warnings: make([]string, 0)}

	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(text)))
	}

	sheet.Statements = p.parse(text, sheet, 0)
	return sheet
}

// Parse is a shortcut for parsing text without logging and warnings.
func Parse(text string) []Statement {
	return NewParser(nil).Parse(text).Statements
}

// scanner holds state for a single statement list scan. Quote and comment
// modes make braces and "@" inert until the mode ends.
type scanner struct {
	inAtRule      bool
	inSingleQuote bool
	inDoubleQuote bool
	inComment     bool
	blockDepth    int
	blockStart    int // offset of the outermost '{' of the current block

	selector strings.Builder
	block    strings.Builder
}

func (s *scanner) quoted() bool {
	return s.inSingleQuote || s.inDoubleQuote
}

// write appends to the block once inside it and to the selector otherwise.
func (s *scanner) write(b byte) {
	if s.blockDepth > 0 {
		s.block.WriteByte(b)
		return
	}
	s.selector.WriteByte(b)
}

func (s *scanner) reset() {
	s.inAtRule = false
	s.selector.Reset()
	s.block.Reset()
}

// parse scans text left to right one byte at a time. All syntax characters
// are ASCII so multi-byte UTF-8 sequences pass through untouched.
func (p *Parser) parse(text string, sheet *Stylesheet, level int) []Statement {
	stmts := make([]Statement, 0)
	s := &scanner{}

	for i := 0; i < len(text); i++ {
		c := text[i]

		if s.inComment {
			if s.blockDepth > 0 {
				s.block.WriteByte(c)
			}
			if c == '*' && i+1 < len(text) && text[i+1] == '/' {
				if s.blockDepth > 0 {
					s.block.WriteByte('/')
				}
				s.inComment = false
				i++
			}
			continue
		}

		switch {
		case c == '\\':
			// escaped character is always literal
			s.write(c)
			if i+1 < len(text) {
				i++
				s.write(text[i])
			}
			continue

		case c == '/' && !s.quoted() && i+1 < len(text) && text[i+1] == '*':
			// comments in selector position are dropped
			s.inComment = true
			if s.blockDepth > 0 {
				s.block.WriteString("/*")
			}
			i++
			continue

		case c == '\'' && !s.inDoubleQuote:
			s.inSingleQuote = !s.inSingleQuote

		case c == '"' && !s.inSingleQuote:
			s.inDoubleQuote = !s.inDoubleQuote

		case s.quoted():

		case c == '{':
			if s.blockDepth == 0 {
				s.blockStart = i
			}
			s.blockDepth++

		case c == '}':
			if s.blockDepth == 0 {
				sheet.Warnings = append(sheet.Warnings, "unexpected '}' outside of a block dropped")
				p.log.Debug("Dropping unexpected closing brace", zap.Int("offset", i), zap.Int("level", level))
				continue
			}
			s.block.WriteByte(c)
			s.blockDepth--
			if s.blockDepth == 0 {
				stmts = append(stmts, p.complete(s, text[s.blockStart+1:i], sheet, level))
				s.reset()
			}
			continue

		case c == '@' && s.blockDepth == 0:
			s.inAtRule = true

		case c == ';' && s.blockDepth == 0 && s.inAtRule:
			// block-less at-rule (@import, @charset, @namespace)
			stmts = append(stmts, Statement{
				Selector: strings.TrimSpace(s.selector.String()),
				Block:    ";",
			})
			s.reset()
			continue
		}

		s.write(c)
	}

	switch {
	case s.inComment:
		p.warn(sheet, "unterminated comment at end of input", level)
	case s.quoted():
		p.warn(sheet, "unterminated quote at end of input", level)
	}
	if s.blockDepth > 0 {
		p.warn(sheet, "unterminated block at end of input dropped", level)
	}
	return stmts
}

// complete builds a statement once its block closes. At-rule bodies are
// parsed recursively with the same scanner rules.
func (p *Parser) complete(s *scanner, inner string, sheet *Stylesheet, level int) Statement {
	st := Statement{
		Selector: strings.TrimSpace(s.selector.String()),
		Block:    strings.TrimSpace(s.block.String()),
	}
	if !s.inAtRule {
		return st
	}
	if children := p.parse(inner, sheet, level+1); len(children) > 0 {
		st.Statements = children
		p.log.Debug("Parsed nested statements", zap.String("rule", st.Selector), zap.Int("statements", len(children)), zap.Int("level", level+1))
	}
	return st
}

func (p *Parser) warn(sheet *Stylesheet, msg string, level int) {
	sheet.Warnings = append(sheet.Warnings, msg)
	p.log.Debug("Lenient parse", zap.String("warning", msg), zap.Int("level", level))
}
