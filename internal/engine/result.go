package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

const summaryFieldLen = 280

// BuildResult assembles the terminal result from whichever stage results are
// present. The recommended action is never empty.
func BuildResult(s models.InvestigationState, now time.Time) models.InvestigationResult {
	res := models.InvestigationResult{
		IncidentID:    s.Incident.IncidentID,
		Service:       s.Incident.Service,
		Status:        status(s),
		Severity:      models.SeverityP2,
		RootCause:     "Root cause not determined",
		Category:      models.CategoryUnknown,
		ExecutionType: models.ExecutionEscalate,
		FullState:     s,
	}
	if res.FullState.Errors == nil {
		res.FullState.Errors = []models.StageError{}
	}

	if s.Triage != nil && s.Triage.Severity.Valid() {
		res.Severity = s.Triage.Severity
	}
	if s.Diagnosis != nil {
		res.RootCause = s.Diagnosis.RootCause
		res.Confidence = s.Diagnosis.Confidence
		if s.Diagnosis.Category != "" {
			res.Category = s.Diagnosis.Category
		}
	} else if s.Skipped {
		res.RootCause = "Not investigated: triage decided to skip"
		if s.Triage != nil && s.Triage.Reasoning != "" {
			res.RootCause += " (" + s.Triage.Reasoning + ")"
		}
	}

	switch {
	case s.Remediation != nil && s.Remediation.RecommendedAction.ActionType != "":
		res.RecommendedAction = s.Remediation.RecommendedAction
		if s.Remediation.ExecutionType != "" {
			res.ExecutionType = s.Remediation.ExecutionType
		}
	case s.Skipped:
		res.RecommendedAction = models.EscalationAction("investigation was skipped at triage; keep monitoring")
	default:
		res.RecommendedAction = models.EscalationAction("no remediation was produced")
	}
	if res.RecommendedAction.Steps == nil {
		res.RecommendedAction.Steps = []string{}
	}

	end := now
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	res.InvestigationDurationSeconds = utils.DurationSeconds(s.StartedAt, end)
	res.ExecutiveSummary = executiveSummary(s)
	return res
}

// FailedResult is the result for a run that hit an unexpected failure. It
// keeps whatever state was gathered but reports zero confidence and escalates.
func FailedResult(s models.InvestigationState, failure string, now time.Time) models.InvestigationResult {
	s = s.WithError(s.CurrentStep, failure, now)
	res := BuildResult(s, now)
	res.Status = models.StatusFailed
	res.RootCause = failure
	res.Confidence = 0
	res.Category = models.CategoryUnknown
	res.RecommendedAction = models.EscalationAction("automated investigation failed")
	res.ExecutionType = models.ExecutionEscalate
	return res
}

func status(s models.InvestigationState) string {
	switch {
	case s.CurrentStep != models.StepDone:
		return models.StatusFailed
	case s.Skipped:
		return models.StatusSkipped
	case len(s.Errors) > 0:
		return models.StatusDegraded
	}
	return models.StatusCompleted
}

// executiveSummary joins the headline finding of each stage that ran.
func executiveSummary(s models.InvestigationState) string {
	var parts []string
	if t := s.Triage; t != nil {
		line := fmt.Sprintf("Triage rated %s %s (priority %d)", s.Incident.Service, t.Severity, t.Priority)
		if t.Reasoning != "" {
			line += ": " + clip(t.Reasoning)
		}
		parts = append(parts, line)
	}
	if s.Skipped {
		parts = append(parts, "Investigation skipped at the triage gate")
	}
	if a := s.Analysis; a != nil {
		line := fmt.Sprintf("Logs: %d matching records across %d queries", a.ErrorCount, len(a.LogQueries))
		if a.Summary != "" {
			line += "; " + clip(a.Summary)
		}
		parts = append(parts, line)
	}
	if d := s.Diagnosis; d != nil {
		parts = append(parts, fmt.Sprintf("Root cause (%s, %d%% confidence): %s", d.Category, d.Confidence, clip(d.RootCause)))
	}
	if r := s.Remediation; r != nil {
		line := fmt.Sprintf("Recommended %s", r.RecommendedAction.ActionType)
		if r.RecommendedAction.Description != "" {
			line += ": " + clip(r.RecommendedAction.Description)
		}
		if r.ExecutionType != "" {
			line += " [" + string(r.ExecutionType) + "]"
		}
		parts = append(parts, line)
	}
	if e := s.Execution; e != nil {
		line := "Execution " + string(e.Status)
		if e.Detail != "" {
			line += ": " + clip(e.Detail)
		}
		parts = append(parts, line)
	}
	if n := len(s.Errors); n > 0 {
		parts = append(parts, fmt.Sprintf("%d stage error(s) recorded", n))
	}
	if len(parts) == 0 {
		return "No findings were produced"
	}
	return strings.Join(parts, ". ") + "."
}

func clip(s string) string {
	return utils.Truncate(strings.TrimRight(strings.TrimSpace(s), "."), summaryFieldLen)
}
