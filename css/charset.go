package css

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

var (
	utf8BOM       = []byte{0xEF, 0xBB, 0xBF}
	charsetPrefix = []byte(`@charset "`)
)

// EncodingByName looks up IANA character set name.
func EncodingByName(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("character set %q is not supported", name)
	}
	return enc, nil
}

// Decode returns stylesheet text converted to UTF-8. When forced is nil the
// encoding is selected by a leading @charset rule, UTF-8 otherwise. The
// @charset rule is removed when text is transcoded since it would no longer be
// true.
func Decode(data []byte, forced encoding.Encoding) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	label, rest, found := charsetRule(data)

	enc := forced
	if enc == nil && found {
		var name string
		if enc, name = charset.Lookup(label); enc == nil {
			return "", fmt.Errorf("unknown @charset %q", label)
		}
		if name == "utf-8" {
			enc = nil
		}
	}
	if enc == nil || enc == unicode.UTF8 || enc == encoding.Nop {
		return string(data), nil
	}

	if found {
		data = rest
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("unable to decode stylesheet: %w", err)
	}
	return string(out), nil
}

// charsetRule extracts label from `@charset "label";` at the very beginning
// of data, this is the only form CSS recognizes.
func charsetRule(data []byte) (string, []byte, bool) {
	if !bytes.HasPrefix(data, charsetPrefix) {
		return "", data, false
	}
	tail := data[len(charsetPrefix):]
	end := bytes.Index(tail, []byte(`";`))
	if end < 0 {
		return "", data, false
	}
	return strings.TrimSpace(string(tail[:end])), tail[end+2:], true
}
