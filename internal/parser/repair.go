package parser

import (
	"fmt"
	"strings"
)

// Repair rewrites s so that strict JSON decoding has a chance to succeed.
//
// Inside string literals raw control characters are escaped (\n, \r, \t, \b,
// \f, otherwise \u00XX); a backslash directly before one is taken as the
// start of that escape. Outside strings stray control characters are dropped
// (JSON whitespace is kept) and trailing commas before '}' or ']' are removed.
//
// It returns the repaired text and the byte offset of the first change, or -1
// when s needed no repair. Repair is idempotent.
func Repair(s string) (string, int) {
	var b strings.Builder
	b.Grow(len(s) + 16)

	firstDiff := -1
	mark := func(i int) {
		if firstDiff < 0 {
			firstDiff = i
		}
	}

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped && c < 0x20:
				// The backslash is already written; it becomes the escape's own.
				escaped = false
				mark(i)
				b.WriteString(escapeControl(c)[1:])
			case escaped:
				escaped = false
				b.WriteByte(c)
			case c == '\\':
				escaped = true
				b.WriteByte(c)
			case c == '"':
				inString = false
				b.WriteByte(c)
			case c < 0x20:
				mark(i)
				b.WriteString(escapeControl(c))
			default:
				b.WriteByte(c)
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == ',' && closesAfterWhitespace(s, i+1):
			mark(i)
		case c < 0x20 && !isJSONWhitespace(c):
			mark(i)
		case c == 0x7f:
			mark(i)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), firstDiff
}

func escapeControl(c byte) string {
	switch c {
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	case '\t':
		return `\t`
	case '\b':
		return `\b`
	case '\f':
		return `\f`
	default:
		return fmt.Sprintf(`\u%04x`, c)
	}
}

func isJSONWhitespace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}

// closesAfterWhitespace reports whether the next byte at or after i that is
// not whitespace, a control character or another comma closes an object or
// array. Runs of commas collapse in one pass.
func closesAfterWhitespace(s string, i int) bool {
	for ; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == ' ' || c == ',' || c == 0x7f {
			continue
		}
		return c == '}' || c == ']'
	}
	return false
}
