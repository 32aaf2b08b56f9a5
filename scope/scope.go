// Package scope rewrites stylesheet selectors so that rules apply only inside
// a single component instance, emulating shadow tree style isolation with
// marker attributes.
package scope

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"scopecss/css"
)

// Attributes are the marker attribute names (without brackets) put on
// elements by the component identity scheme: Content on every element inside
// a component template, Host on the component host element.
type Attributes struct {
	Content string
	Host    string
}

// Validate makes sure attribute names could be used inside "[...]".
func (a Attributes) Validate() error {
	var err error
	check := func(what, name string) {
		switch {
		case name == "":
			err = multierr.Append(err, fmt.Errorf("%s attribute is empty", what))
		case strings.ContainsAny(name, "[]\"' \t\r\n,{}"):
			err = multierr.Append(err, fmt.Errorf("%s attribute %q contains characters not allowed in attribute name", what, name))
		}
	}
	check("content", a.Content)
	check("host", a.Host)
	return err
}

var (
	// :host-context(<arg>)
	hostContextPattern = regexp.MustCompile(`:host-context\(([^)]*)\)`)
	// :host or :host(<arg>)
	hostPattern = regexp.MustCompile(`:host(?:\(([^)]*)\))?`)
)

// Selector rewrites single rule selector: every compound selector in every
// comma separated group gets content attribute appended, unless it refers to
// the host element or is a bare combinator. Host pseudo-classes are then
// replaced with host attribute. Preludes of at-rules without nested rules
// (@font-face, @page, empty @media) are returned unchanged.
func Selector(selector string, attrs Attributes) string {
	selector = strings.TrimSpace(selector)
	if strings.HasPrefix(selector, "@") {
		return selector
	}

	content := "[" + attrs.Content + "]"
	host := escapeReplacement("[" + attrs.Host + "]")

	groups := strings.Split(selector, ",")
	for i, group := range groups {
		parts := strings.Fields(group)
		for j, part := range parts {
			if strings.Contains(part, ":host") || isCombinator(part) {
				continue
			}
			parts[j] = part + content
		}
		groups[i] = strings.Join(parts, " ")
	}
	result := strings.Join(groups, ", ")

	result = hostContextPattern.ReplaceAllString(result, "*${1} "+host)
	result = hostPattern.ReplaceAllString(result, host+"${1}")
	return result
}

// Transform rewrites selectors of all leaf statements in place, depth-first.
// Container selectors (at-rule preludes) are never changed. Keyframe
// selectors ("from", "50%") do not address elements and are left alone.
func Transform(stmts []css.Statement, attrs Attributes) {
	for i := range stmts {
		st := &stmts[i]
		if st.IsContainer() {
			if !isKeyframes(st) {
				Transform(st.Statements, attrs)
			}
			continue
		}
		st.Selector = Selector(st.Selector, attrs)
	}
}

// StyleToEmulatedEncapsulation parses text, scopes all selectors and
// serializes the result back into text.
func StyleToEmulatedEncapsulation(text string, attrs Attributes) string {
	stmts := css.Parse(text)
	Transform(stmts, attrs)
	return css.Serialize(stmts)
}

// Encapsulator binds attributes, parser and logger together for callers
// scoping many stylesheets for the same component. It keeps no per-call state
// and is safe for concurrent use.
type Encapsulator struct {
	attrs  Attributes
	parser *css.Parser
	log    *zap.Logger
}

// ErrInvalidAttributes is returned by NewEncapsulator for unusable attributes.
var ErrInvalidAttributes = errors.New("invalid scope attributes")

// NewEncapsulator creates Encapsulator for given attributes.
func NewEncapsulator(attrs Attributes, log *zap.Logger) (*Encapsulator, error) {
	if err := attrs.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAttributes, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("scope")
	return &Encapsulator{
		attrs:  attrs,
		parser: css.NewParser(log),
		log:    log,
	}, nil
}

// Attributes returns attributes used for scoping.
func (e *Encapsulator) Attributes() Attributes {
	return e.attrs
}

// Sheet parses and transforms text, returning the transformed tree along
// with parser warnings.
func (e *Encapsulator) Sheet(text string, source ...string) *css.Stylesheet {
	sheet := e.parser.Parse(text, source...)
	Transform(sheet.Statements, e.attrs)

	for _, w := range sheet.Warnings {
		e.log.Warn("Stylesheet is malformed, result may be incomplete", zap.Strings("source", source), zap.String("problem", w))
	}
	e.log.Debug("Stylesheet scoped",
		zap.Strings("source", source), zap.Int("statements", len(sheet.Statements)), zap.Int("rules", sheet.Leaves()),
		zap.String("content", e.attrs.Content), zap.String("host", e.attrs.Host))
	return sheet
}

// Encapsulate is StyleToEmulatedEncapsulation with logging.
func (e *Encapsulator) Encapsulate(text string, source ...string) string {
	return e.Sheet(text, source...).String()
}

func isCombinator(part string) bool {
	switch part {
	case ">", "+", "~", ">>>":
		return true
	}
	return false
}

func isKeyframes(st *css.Statement) bool {
	return strings.HasSuffix(st.AtKeyword(), "keyframes")
}

// escapeReplacement protects "$" in attribute names from regexp expansion.
func escapeReplacement(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
