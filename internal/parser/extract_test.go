package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractStrategies(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		want     string
		strategy Strategy
	}{
		{
			name:     "fenced block wins over surrounding braces",
			text:     "prefix {\"x\":0}\n```json\n{\"a\":1}\n```\ntrailer",
			want:     `{"a":1}`,
			strategy: StrategyFencedBlock,
		},
		{
			name:     "fenced tag is case insensitive",
			text:     "```JSON {\"a\":1}```",
			want:     `{"a":1}`,
			strategy: StrategyFencedBlock,
		},
		{
			name:     "balanced braces ignore braces inside strings",
			text:     `Result: {"msg":"use } carefully","n":{"k":2}} and more}`,
			want:     `{"msg":"use } carefully","n":{"k":2}}`,
			strategy: StrategyBalancedBraces,
		},
		{
			name:     "permissive span when braces never balance",
			text:     `noise {"a":{"b":1} tail {`,
			want:     `{"a":{"b":1}`,
			strategy: StrategyPermissive,
		},
		{
			name:     "whole text fallback",
			text:     "  just words  ",
			want:     "just words",
			strategy: StrategyWholeText,
		},
		{
			name:     "empty text",
			text:     " \n ",
			want:     "",
			strategy: StrategyNone,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, strategy := Extract(tc.text)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.strategy, strategy)
		})
	}
}

func TestBalancedObjectsScansPastProse(t *testing.T) {
	text := `the {service} logs, an open { brace, then {"a":{"b":1}} and {"c":"}"}`

	assert.Equal(t, []string{`{service}`, `{"a":{"b":1}}`, `{"c":"}"}`}, balancedObjects(text))
	assert.Empty(t, balancedObjects("no braces here"))
	assert.Len(t, balancedObjects(strings.Repeat("{}", 50)), maxBalancedSpans)
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "fenced_block", StrategyFencedBlock.String())
	assert.Equal(t, "none", Strategy(42).String())
}
