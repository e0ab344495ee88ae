// Package parser turns free-form inference-service text into validated
// structured values. It never fails past its boundary: every decode yields a
// value that satisfies its schema, substituting declared defaults where the
// input was malformed.
package parser

import (
	"regexp"
	"strings"
)

// Strategy identifies which extraction rule produced a candidate.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyFencedBlock
	StrategyBalancedBraces
	StrategyPermissive
	StrategyWholeText
)

func (s Strategy) String() string {
	switch s {
	case StrategyFencedBlock:
		return "fenced_block"
	case StrategyBalancedBraces:
		return "balanced_braces"
	case StrategyPermissive:
		return "permissive"
	case StrategyWholeText:
		return "whole_text"
	default:
		return "none"
	}
}

var (
	fencedJSON     = regexp.MustCompile("(?is)```[ \\t]*json[ \\t]*\\r?\\n?(.*?)```")
	permissiveJSON = regexp.MustCompile(`(?s)\{.*\}`)
)

// Extract locates the structured-data candidate inside text. Strategies are
// tried in order and the first that yields a non-empty span wins.
func Extract(text string) (string, Strategy) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		if inner := strings.TrimSpace(m[1]); inner != "" {
			return inner, StrategyFencedBlock
		}
	}
	if span, ok := balancedObject(text); ok {
		return span, StrategyBalancedBraces
	}
	if span := permissiveJSON.FindString(text); span != "" {
		return span, StrategyPermissive
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", StrategyNone
	}
	return trimmed, StrategyWholeText
}

// maxBalancedSpans bounds how many brace spans a single response yields.
const maxBalancedSpans = 8

// balancedObject returns the span from the first '{' to its matching '}'.
// Braces inside string literals do not count towards depth.
func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	end := matchBrace(text, start)
	if end < 0 {
		return "", false
	}
	return text[start : end+1], true
}

// balancedObjects returns the top-level balanced spans of text in order.
// Prose such as "the {service} logs" yields a span of its own, so callers
// can move on to the next one when a span does not decode. A '{' that never
// closes is skipped.
func balancedObjects(text string) []string {
	var spans []string
	for from := 0; from < len(text) && len(spans) < maxBalancedSpans; {
		rel := strings.IndexByte(text[from:], '{')
		if rel < 0 {
			break
		}
		start := from + rel
		end := matchBrace(text, start)
		if end < 0 {
			from = start + 1
			continue
		}
		spans = append(spans, text[start:end+1])
		from = end + 1
	}
	return spans
}

// matchBrace returns the index of the '}' closing the '{' at start, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
