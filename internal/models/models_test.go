package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncidentOrigin(t *testing.T) {
	cases := []struct {
		name     string
		raw      map[string]any
		origin   string
		operator bool
	}{
		{name: "no raw event", raw: nil, origin: "", operator: false},
		{name: "alarm", raw: map[string]any{"source": "cloudwatch"}, origin: "cloudwatch", operator: false},
		{name: "chat mixed case", raw: map[string]any{"source": "  Chat "}, origin: "chat", operator: true},
		{name: "operator", raw: map[string]any{"source": "operator"}, origin: "operator", operator: true},
		{name: "query", raw: map[string]any{"source": "query"}, origin: "query", operator: true},
		{name: "explicit flag", raw: map[string]any{"explicit_investigation": true}, origin: "", operator: true},
		{name: "explicit flag false", raw: map[string]any{"explicit_investigation": false, "source": "alarm"}, origin: "alarm", operator: false},
		{name: "non-string source", raw: map[string]any{"source": 7}, origin: "", operator: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := IncidentEvent{IncidentID: "INC-1", RawEvent: tc.raw}
			assert.Equal(t, tc.origin, e.Origin())
			assert.Equal(t, tc.operator, e.IsOperatorInitiated())
		})
	}
}

func TestOperatorQuery(t *testing.T) {
	e := IncidentEvent{RawEvent: map[string]any{"user_query": "  ", "query": " why 500s? "}}
	assert.Equal(t, "why 500s?", e.OperatorQuery())
	assert.Empty(t, IncidentEvent{}.OperatorQuery())
}

func TestRegion(t *testing.T) {
	assert.Empty(t, IncidentEvent{}.Region())
	assert.Equal(t, "eu-west-1", IncidentEvent{Tags: map[string]string{"aws_region": "eu-west-1"}}.Region())
	assert.Equal(t, "us-west-2", IncidentEvent{Tags: map[string]string{"region": "us-west-2", "aws_region": "eu-west-1"}}.Region())
}

func TestWithErrorLeavesSnapshotsIntact(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	base := NewInvestigationState("run-1", IncidentEvent{IncidentID: "INC-1"}, at)
	require.NotNil(t, base.Errors)
	assert.Equal(t, StepTriage, base.CurrentStep)

	first := base.WithError(StepTriage, "triage failed", at)
	a := first.WithError(StepAnalysis, "query failed", at)
	b := first.WithError(StepDiagnosis, "diagnosis failed", at)

	assert.Empty(t, base.Errors)
	assert.Len(t, first.Errors, 1)
	require.Len(t, a.Errors, 2)
	require.Len(t, b.Errors, 2)
	assert.Equal(t, StepAnalysis, a.Errors[1].Stage)
	assert.Equal(t, StepDiagnosis, b.Errors[1].Stage)
}

func TestStateSerialisesEmptyErrors(t *testing.T) {
	s := NewInvestigationState("run-1", IncidentEvent{IncidentID: "INC-1"}, time.Unix(0, 0).UTC())
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"errors":[]`)
	assert.NotContains(t, string(data), `"triage"`)
}

func TestUpstreamShapes(t *testing.T) {
	typed := Typed(TriageResult{Severity: SeverityP1})
	v, ok := typed.Typed()
	require.True(t, ok)
	assert.Equal(t, SeverityP1, v.Severity)
	_, ok = typed.Raw()
	assert.False(t, ok)
	assert.True(t, typed.Present())

	raw := Raw[TriageResult](map[string]any{"severity": "P3"})
	m, ok := raw.Raw()
	require.True(t, ok)
	assert.Equal(t, "P3", m["severity"])
	_, ok = raw.Typed()
	assert.False(t, ok)

	missing := Missing[DiagnosisResult]()
	assert.False(t, missing.Present())
}

func TestSeverityValid(t *testing.T) {
	for _, s := range []Severity{SeverityP1, SeverityP2, SeverityP3, SeverityP4} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Severity("P5").Valid())
	assert.False(t, Severity("").Valid())
}

func TestEscalationAction(t *testing.T) {
	a := EscalationAction("")
	assert.Equal(t, "escalate", a.ActionType)
	assert.Equal(t, RiskLow, a.RiskLevel)
	assert.NotEmpty(t, a.Steps)
	assert.Contains(t, EscalationAction("no logs").Description, "no logs")
}
