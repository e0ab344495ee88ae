package parser

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairEscapesControlCharactersInStrings(t *testing.T) {
	cases := map[byte]string{
		'\n': `\n`,
		'\r': `\r`,
		'\t': `\t`,
		'\b': `\b`,
		'\f': `\f`,
		0x00: `\u0000`,
		0x01: `\u0001`,
		0x1b: `\u001b`,
		0x1f: `\u001f`,
	}
	for c, escaped := range cases {
		in := `{"k":"a` + string(c) + `b"}`
		out, pos := Repair(in)
		assert.Equal(t, `{"k":"a`+escaped+`b"}`, out, "control 0x%02x", c)
		assert.Equal(t, 7, pos, "control 0x%02x", c)

		var v map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &v), "control 0x%02x", c)
		assert.Equal(t, "a"+string(c)+"b", v["k"])
	}
}

func TestRepairAtEveryNestingDepth(t *testing.T) {
	for depth := 1; depth <= 6; depth++ {
		open := strings.Repeat(`{"n":`, depth-1)
		closeBraces := strings.Repeat("}", depth-1)
		in := open + "{\"msg\":\"line1\nline2\",\"list\":[1,2,],}" + closeBraces

		out, pos := Repair(in)
		require.GreaterOrEqual(t, pos, 0)

		var v map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &v), "depth %d: %s", depth, out)
		for i := 1; i < depth; i++ {
			v = v["n"].(map[string]any)
		}
		assert.Equal(t, "line1\nline2", v["msg"])
		assert.Len(t, v["list"], 2)
	}
}

func TestRepairOutsideStrings(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"trailing comma in object", `{"a":1,}`, `{"a":1}`},
		{"trailing comma in array", `[1,2, ]`, `[1,2 ]`},
		{"comma run", `{"a":[1,,]}`, `{"a":[1]}`},
		{"stray control byte", "{\"a\":\x011}", `{"a":1}`},
		{"del byte", "{\"a\":1\x7f}", `{"a":1}`},
		{"whitespace kept", "{\n\t\"a\": 1\r\n}", "{\n\t\"a\": 1\r\n}"},
		{"comma inside string untouched", `{"a":"x,}"}`, `{"a":"x,}"}`},
		{"escaped quote keeps string open", "{\"a\":\"say \\\"hi\n\\\"\"}", `{"a":"say \"hi\n\""}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := Repair(tc.in)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRepairIsIdempotent(t *testing.T) {
	inputs := []string{
		`{"a":1}`,
		"{\"a\":\"x\ny\",}",
		"{\"a\":[1,2,,],\x02\"b\":\"\t\"}",
		"{\"a\":\"\\\x01\"}",
		`{"a":"\\",}`,
		"",
		"not json at all,]",
	}
	for _, in := range inputs {
		once, _ := Repair(in)
		twice, pos := Repair(once)
		assert.Equal(t, once, twice, "input %q", in)
		assert.Equal(t, -1, pos, "input %q", in)
	}
}

func TestRepairReportsNoChange(t *testing.T) {
	out, pos := Repair(`{"ok":true}`)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, -1, pos)
}

func TestRepairBackslashBeforeControlCharacter(t *testing.T) {
	cases := map[string]string{
		"{\"k\":\"x\\\ny\"}":   "x\ny",
		"{\"k\":\"x\\\ty\"}":   "x\ty",
		"{\"k\":\"x\\\x01y\"}": "x\x01y",
	}
	for in, want := range cases {
		out, pos := Repair(in)
		assert.Equal(t, 8, pos, "input %q", in)

		var v map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &v), "input %q: %s", in, out)
		assert.Equal(t, want, v["k"], "input %q", in)
	}
}
