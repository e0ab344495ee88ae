package parser

import (
	"encoding/json"
	"errors"
	"strings"
)

// Report describes how a response was turned into fields.
type Report struct {
	Strategy  Strategy
	Repaired  bool
	RepairPos int
}

// Schema declares how a stage result is built from loosely-typed fields and
// what it looks like when nothing usable was supplied.
type Schema[T any] interface {
	Default() T
	FromFields(Fields) T
}

// Parse extracts and decodes the first JSON object in text.
func Parse(text string) (Fields, error) {
	fields, _, err := ParseDetailed(text)
	return fields, err
}

// ParseDetailed is Parse plus a description of the strategy and repair used.
//
// Candidates are tried in strategy order. For each, strict decoding is
// attempted first and the repair pass is applied only if that fails.
func ParseDetailed(text string) (Fields, Report, error) {
	candidates := candidates(text)
	if len(candidates) == 0 {
		return nil, Report{RepairPos: -1}, newParseError(text, StrategyNone, -1, ErrNoCandidate)
	}

	var (
		primaryErr error
		primaryPos = -1
	)
	for i, c := range candidates {
		fields, err := decodeObject(c.text)
		if err == nil {
			return fields, Report{Strategy: c.strategy, RepairPos: -1}, nil
		}
		repaired, pos := Repair(c.text)
		if i == 0 {
			primaryErr, primaryPos = err, pos
		}
		if pos < 0 {
			continue
		}
		fields, rerr := decodeObject(repaired)
		if rerr == nil {
			return fields, Report{Strategy: c.strategy, Repaired: true, RepairPos: pos}, nil
		}
		if i == 0 {
			primaryErr = rerr
		}
	}
	return nil, Report{Strategy: candidates[0].strategy, RepairPos: primaryPos}, newParseError(text, candidates[0].strategy, primaryPos, primaryErr)
}

// Decode parses text and builds T through schema. On failure it returns the
// schema default together with the parse error, so callers always hold a
// schema-valid value.
func Decode[T any](text string, schema Schema[T]) (T, error) {
	fields, err := Parse(text)
	if err != nil {
		return schema.Default(), err
	}
	return schema.FromFields(fields), nil
}

// DecodeMap builds T from an already-decoded map.
func DecodeMap[T any](m map[string]any, schema Schema[T]) T {
	if m == nil {
		return schema.Default()
	}
	return schema.FromFields(Fields(m))
}

type candidate struct {
	text     string
	strategy Strategy
}

// candidates lists the distinct spans each extraction strategy yields, in order.
func candidates(text string) []candidate {
	var out []candidate
	seen := make(map[string]struct{})
	add := func(s string, strategy Strategy) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, candidate{text: s, strategy: strategy})
	}

	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		add(m[1], StrategyFencedBlock)
	}
	for _, span := range balancedObjects(text) {
		add(span, StrategyBalancedBraces)
	}
	add(permissiveJSON.FindString(text), StrategyPermissive)
	add(text, StrategyWholeText)
	return out
}

var errNotObject = errors.New("top-level value is not an object")

func decodeObject(s string) (Fields, error) {
	var v any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after object")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return Fields(m), nil
}
