package engine

import (
	"strings"

	"github.com/miradorstack/mirador-investigator/internal/agents"
	"github.com/miradorstack/mirador-investigator/internal/models"
)

// The helpers below apply after a stage returned an error. A stage may hand
// back a partial result; anything the rest of the run cannot use is replaced
// with the stage's conservative default.

// triageFallback never lets a failed triage skip the incident.
func triageFallback(res models.TriageResult) models.TriageResult {
	def := agents.TriageSchema{}.Default()
	if !res.Severity.Valid() {
		return def
	}
	res.Decision = models.DecisionInvestigate
	res.Degraded = true
	if res.Priority < 1 || res.Priority > 10 {
		res.Priority = def.Priority
	}
	if strings.TrimSpace(res.Reasoning) == "" {
		res.Reasoning = def.Reasoning
	}
	return res
}

func analysisFallback(res models.AnalysisResult) models.AnalysisResult {
	if res.LogQueries == nil && strings.TrimSpace(res.Summary) == "" {
		return agents.AnalysisSchema{}.Default()
	}
	res.Degraded = true
	return res
}

func diagnosisFallback(res models.DiagnosisResult) models.DiagnosisResult {
	if strings.TrimSpace(res.RootCause) == "" || strings.TrimSpace(res.Category) == "" {
		return agents.DiagnosisSchema{}.Default()
	}
	res.Degraded = true
	return res
}

func remediationFallback(res models.RemediationResult) models.RemediationResult {
	if strings.TrimSpace(res.RecommendedAction.ActionType) == "" {
		return agents.RemediationSchema{}.Default()
	}
	res.Degraded = true
	res.RequiresApproval = true
	return res
}
