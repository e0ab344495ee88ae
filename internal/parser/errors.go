package parser

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrNoCandidate is returned when the text holds nothing that looks like structured data.
var ErrNoCandidate = errors.New("no structured data found")

// prefixLen bounds how much of the original text a ParseError carries.
const prefixLen = 200

// ParseError is the typed failure returned when no candidate decodes, even after repair.
type ParseError struct {
	// Prefix is the beginning of the original text.
	Prefix string
	// RepairPos is the byte offset of the first repair applied to the primary
	// candidate, or -1 when the repair pass changed nothing.
	RepairPos int
	Strategy  Strategy
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse inference response (strategy=%s, repair_pos=%d, prefix=%q): %v", e.Strategy, e.RepairPos, e.Prefix, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(text string, strategy Strategy, repairPos int, err error) *ParseError {
	prefix := text
	if len(prefix) > prefixLen {
		cut := prefixLen
		for cut > 0 && !utf8.RuneStart(prefix[cut]) {
			cut--
		}
		prefix = prefix[:cut]
	}
	return &ParseError{Prefix: prefix, RepairPos: repairPos, Strategy: strategy, Err: err}
}
