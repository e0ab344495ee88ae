package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIncidentsJSONObject(t *testing.T) {
	incidents, err := decodeIncidents([]byte(`{
		"incident_id": "INC-1",
		"service": "checkout",
		"value": 12.5,
		"threshold": 5,
		"timestamp": "2024-03-01T10:00:00Z",
		"raw_event": {"source": "chat", "user_query": "why is checkout slow?"}
	}`))
	require.NoError(t, err)
	require.Len(t, incidents, 1)

	inc := incidents[0]
	assert.Equal(t, "INC-1", inc.IncidentID)
	assert.Equal(t, 12.5, inc.Value)
	assert.True(t, inc.Timestamp.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, inc.IsOperatorInitiated())
	assert.Equal(t, "why is checkout slow?", inc.OperatorQuery())
}

func TestDecodeIncidentsYAMLList(t *testing.T) {
	doc := `
- incident_id: INC-1
  service: checkout
  timestamp: 2024-03-01T10:00:00Z
  tags:
    team: payments
- incident_id: INC-2
  service: search
  timestamp: 1709287200
`
	incidents, err := decodeIncidents([]byte(doc))
	require.NoError(t, err)
	require.Len(t, incidents, 2)
	assert.Equal(t, "payments", incidents[0].Tags["team"])
	assert.True(t, incidents[1].Timestamp.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestDecodeIncidentsRejects(t *testing.T) {
	cases := map[string]string{
		"scalar":     `"just a string"`,
		"empty list": `[]`,
		"non object": `[1, 2]`,
		"missing id": `{"service": "checkout"}`,
		"bad yaml":   "incident_id: [unclosed",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeIncidents([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestReadIncidentsFromStdin(t *testing.T) {
	incidents, err := readIncidents(strings.NewReader(`{"incident_id": "INC-9"}`), "-")
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, "INC-9", incidents[0].IncidentID)
}

func TestWriteJSONIndents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]int{"count": 2}))
	assert.Equal(t, "{\n  \"count\": 2\n}\n", buf.String())
}

func TestValidateLogLevel(t *testing.T) {
	assert.NoError(t, validateLogLevel("debug"))
	assert.Error(t, validateLogLevel("verbose"))
}
