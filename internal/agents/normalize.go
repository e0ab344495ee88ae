package agents

import (
	"encoding/json"

	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/parser"
)

// Normalize turns an upstream stage result into its typed form. A typed value
// and its untyped map decode identically, because both pass through the
// schema; a missing upstream yields the schema default.
func Normalize[T any](u models.Upstream[T], schema parser.Schema[T]) T {
	if v, ok := u.Typed(); ok {
		m, err := toMap(v)
		if err != nil {
			return v
		}
		return schema.FromFields(parser.Fields(m))
	}
	if m, ok := u.Raw(); ok {
		return parser.DecodeMap(m, schema)
	}
	return schema.Default()
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
