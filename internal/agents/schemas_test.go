package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/parser"
)

func TestTriageSchemaCoercion(t *testing.T) {
	tests := []struct {
		name     string
		fields   parser.Fields
		severity models.Severity
		decision models.TriageDecision
		priority int
	}{
		{"canonical", parser.Fields{"severity": "P3", "decision": "SKIP", "priority": 2.0}, models.SeverityP3, models.DecisionSkip, 2},
		{"sev form", parser.Fields{"severity": "SEV1", "decision": "investigate"}, models.SeverityP1, models.DecisionInvestigate, DefaultPriority},
		{"numeric severity", parser.Fields{"severity": 4.0, "decision": "ignore", "priority": "12"}, models.SeverityP4, models.DecisionSkip, 10},
		{"garbage", parser.Fields{"severity": "critical!!", "decision": "maybe", "priority": -3.0}, models.SeverityP2, models.DecisionInvestigate, 1},
		{"huge priority", parser.Fields{"severity": "P1", "priority": 1e30}, models.SeverityP1, models.DecisionInvestigate, 10},
		{"huge negative priority", parser.Fields{"severity": "P1", "priority": -1e30}, models.SeverityP1, models.DecisionInvestigate, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TriageSchema{}.FromFields(tt.fields)
			assert.Equal(t, tt.severity, got.Severity)
			assert.Equal(t, tt.decision, got.Decision)
			assert.Equal(t, tt.priority, got.Priority)
			assert.NotNil(t, got.AffectedComponents)
		})
	}
}

func TestDiagnosisConfidence(t *testing.T) {
	tests := []struct {
		value any
		want  int
	}{
		{85.0, 85},
		{"0.85", 85},
		{"85%", 85},
		{"1", 1},
		{"1.0", 100},
		{140.0, 100},
		{1e30, 100},
		{"1e30", 100},
		{-1e30, 0},
		{"-4", 0},
		{"high", DefaultConfidence},
	}
	for _, tt := range tests {
		got := DiagnosisSchema{}.FromFields(parser.Fields{"confidence": tt.value})
		assert.Equal(t, tt.want, got.Confidence, "confidence %v", tt.value)
	}

	missing := DiagnosisSchema{}.FromFields(parser.Fields{"root_cause": "disk full"})
	assert.Equal(t, DefaultConfidence, missing.Confidence)
	assert.Equal(t, models.CategoryUnknown, missing.Category)
	assert.Equal(t, "disk full", missing.RootCause)
}

func TestDiagnosisCategory(t *testing.T) {
	assert.Equal(t, "LOGIC_ERROR", category("logic error"))
	assert.Equal(t, "ERROR_HANDLING", category("error-handling"))
	assert.Equal(t, models.CategoryUnknown, category(""))
	assert.Equal(t, models.CategoryUnknown, category("it is probably the database"))
}

func TestRemediationSchema(t *testing.T) {
	t.Run("low risk reversible keeps model approval", func(t *testing.T) {
		got := RemediationSchema{}.FromFields(parser.Fields{
			"recommended_action": map[string]any{"action_type": "restart", "risk_level": "low", "reversible": true},
			"requires_approval":  false,
		})
		assert.Equal(t, models.RiskLow, got.RecommendedAction.RiskLevel)
		assert.False(t, got.RequiresApproval)
	})

	t.Run("missing risk is high and irreversible", func(t *testing.T) {
		got := RemediationSchema{}.FromFields(parser.Fields{
			"recommended_action": map[string]any{"action_type": "drop_table"},
			"requires_approval":  "no",
		})
		assert.Equal(t, models.RiskHigh, got.RecommendedAction.RiskLevel)
		assert.False(t, got.RecommendedAction.Reversible)
		assert.True(t, got.RequiresApproval)
		assert.Contains(t, got.ApprovalReason, "not reversible")
	})

	t.Run("flat action", func(t *testing.T) {
		got := RemediationSchema{}.FromFields(parser.Fields{"action_type": "scale", "description": "add two tasks", "risk_level": "LOW", "reversible": "yes"})
		assert.Equal(t, "scale", got.RecommendedAction.ActionType)
		assert.True(t, got.RecommendedAction.Reversible)
	})

	t.Run("no action escalates", func(t *testing.T) {
		got := RemediationSchema{}.FromFields(parser.Fields{"success_criteria": []any{"errors drop"}})
		assert.Equal(t, "escalate", got.RecommendedAction.ActionType)
		assert.Equal(t, []string{"errors drop"}, got.SuccessCriteria)
		assert.Equal(t, DefaultMonitoringMinutes, got.MonitoringDurationMinutes)
	})
}

func TestQueryPlanSchemaLimit(t *testing.T) {
	got := queryPlanSchema{limit: 2}.FromFields(parser.Fields{"queries": []any{
		"fields @message",
		map[string]any{"purpose": "empty"},
		map[string]any{"purpose": "errors", "query": "filter level = 'error'"},
		"never reached",
	}})
	require.Len(t, got, 2)
	assert.Equal(t, "fields @message", got[0].Query)
	assert.Equal(t, "errors", got[1].Purpose)
}

func TestNormalize(t *testing.T) {
	diag := models.DiagnosisResult{RootCause: "bad deploy", Confidence: 70, Category: "DEPLOYMENT", Component: "api"}

	typed := Normalize(models.Typed(diag), DiagnosisSchema{})
	raw := Normalize(models.Raw[models.DiagnosisResult](map[string]any{
		"root_cause": "bad deploy", "confidence": 70.0, "category": "deployment", "component": "api",
	}), DiagnosisSchema{})
	assert.Equal(t, typed, raw)
	assert.Equal(t, 70, typed.Confidence)
	assert.Equal(t, []string{}, typed.SupportingEvidence)

	missing := Normalize(models.Missing[models.DiagnosisResult](), DiagnosisSchema{})
	assert.Equal(t, DiagnosisSchema{}.Default(), missing)
}
