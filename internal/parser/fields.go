package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Fields is a decoded JSON object with lenient, default-substituting accessors.
// Keys are matched exactly first, then case- and separator-insensitively, so
// "rootCause", "Root Cause" and "root_cause" all resolve to the same field.
type Fields map[string]any

var leadingNumber = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

func normaliseKey(k string) string {
	k = strings.ToLower(k)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
}

func (f Fields) lookup(key string) (any, bool) {
	if f == nil {
		return nil, false
	}
	if v, ok := f[key]; ok {
		return v, v != nil
	}
	want := normaliseKey(key)
	for k, v := range f {
		if normaliseKey(k) == want {
			return v, v != nil
		}
	}
	return nil, false
}

// Has reports whether key is present with a non-null value.
func (f Fields) Has(key string) bool {
	_, ok := f.lookup(key)
	return ok
}

// String returns the field as trimmed text; scalars are formatted, empty values yield def.
func (f Fields) String(key, def string) string {
	v, ok := f.lookup(key)
	if !ok {
		return def
	}
	if s := stringify(v); s != "" {
		return s
	}
	return def
}

// Int parses numeric fields leniently: numbers are rounded, strings such as
// "85", "85%" or "about 85" yield their leading number.
func (f Fields) Int(key string, def int) int {
	v, ok := f.lookup(key)
	if !ok {
		return def
	}
	if n, ok := toFloat(v); ok {
		return saturate(math.Round(n))
	}
	return def
}

// saturate converts n to int, pinning values outside the int range to its ends.
func saturate(n float64) int {
	switch {
	case n >= math.MaxInt:
		return math.MaxInt
	case n <= math.MinInt:
		return math.MinInt
	}
	return int(n)
}

// Float is the float64 counterpart of Int.
func (f Fields) Float(key string, def float64) float64 {
	v, ok := f.lookup(key)
	if !ok {
		return def
	}
	if n, ok := toFloat(v); ok {
		return n
	}
	return def
}

// Bool accepts booleans, yes/no style strings and numbers.
func (f Fields) Bool(key string, def bool) bool {
	v, ok := f.lookup(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			return true
		case "false", "no", "n", "0":
			return false
		}
		return def
	}
	if n, ok := toFloat(v); ok {
		return n != 0
	}
	return def
}

// Enum upper-cases the field, maps spaces and dashes to underscores and
// returns def unless the result is one of allowed (any value when allowed is empty).
func (f Fields) Enum(key, def string, allowed ...string) string {
	raw := strings.TrimSpace(f.String(key, ""))
	if raw == "" {
		return def
	}
	val := strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_").Replace(raw))
	if len(allowed) == 0 {
		return val
	}
	for _, a := range allowed {
		if val == a {
			return val
		}
	}
	return def
}

// List returns the field as a slice; a non-list value is wrapped into a single-element list.
func (f Fields) List(key string) []any {
	v, ok := f.lookup(key)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, 0, len(t))
		for _, s := range t {
			out = append(out, s)
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(t))
		for _, m := range t {
			out = append(out, m)
		}
		return out
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
	}
	return []any{v}
}

// StringList returns the field as a list of non-empty strings. It never returns nil.
func (f Fields) StringList(key string) []string {
	items := f.List(key)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := stringify(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Object returns a nested object, or nil when the field is absent or not an object.
func (f Fields) Object(key string) Fields {
	v, ok := f.lookup(key)
	if !ok {
		return nil
	}
	return asFields(v)
}

// Objects returns the nested objects of a list field, skipping non-object items.
func (f Fields) Objects(key string) []Fields {
	items := f.List(key)
	out := make([]Fields, 0, len(items))
	for _, item := range items {
		if obj := asFields(item); obj != nil {
			out = append(out, obj)
		}
	}
	return out
}

// StringMap returns an object field flattened to string values.
func (f Fields) StringMap(key string) map[string]string {
	obj := f.Object(key)
	if obj == nil {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		out[k] = stringify(v)
	}
	return out
}

func asFields(v any) Fields {
	switch t := v.(type) {
	case map[string]any:
		return Fields(t)
	case Fields:
		return t
	case map[string]string:
		out := make(Fields, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	}
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		for _, key := range []string{"description", "text", "message", "name", "summary"} {
			if s, ok := t[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Float64(); err == nil {
			return n, true
		}
		return parseLeadingNumber(t.String())
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case string:
		return parseLeadingNumber(t)
	}
	return 0, false
}

func parseLeadingNumber(s string) (float64, bool) {
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
